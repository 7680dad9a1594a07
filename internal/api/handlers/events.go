package handlers

import (
	"encoding/json"
	"log"

	"github.com/SecurePass-Share/Transfer-Service/internal/services"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
	"github.com/nats-io/nats.go"
)

type UserDeletedPayload struct {
	UserID string `json:"user_id"`
}

// HandleUserDeleted removes everything a deleted user owned: file rows,
// their requests and sessions, and the stored ciphertext.
func HandleUserDeleted(msg *nats.Msg) {
	var payload UserDeletedPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Printf("[NATS] users.deleted: invalid JSON: %v", err)
		nak(msg)
		return
	}

	if payload.UserID == "" {
		log.Printf("[NATS] users.deleted: missing user_id")
		nak(msg)
		return
	}

	log.Printf("[NATS] Processing users.deleted for user_id: %s", payload.UserID)

	deleted, err := store.DeleteUserFiles(payload.UserID)
	if err != nil {
		log.Printf("[NATS] Failed to delete file records for user %s: %v", payload.UserID, err)
		nak(msg)
		return
	}
	log.Printf("[NATS] Deleted %d file records for user %s", len(deleted), payload.UserID)

	minioSvc := services.GetMinioService()
	if minioSvc == nil {
		log.Printf("[NATS] MinIO service not available — skipping object deletion")
	} else {
		for _, f := range deleted {
			if err := minioSvc.DeletePrefix(storage.FilePrefix(f.ID)); err != nil {
				log.Printf("[NATS] Failed to delete objects for file %s: %v", f.ID, err)
				nak(msg)
				return
			}
		}
	}

	log.Printf("[NATS] Successfully cleaned up user %s", payload.UserID)
	ack(msg)
}

// ack safely acknowledges the message
func ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		log.Printf("[NATS] Failed to ack message: %v", err)
	}
}

// nak negatively acknowledges (retry)
func nak(msg *nats.Msg) {
	if err := msg.Nak(); err != nil {
		log.Printf("[NATS] Failed to nak message: %v", err)
	}
}
