package models

import (
	"time"
)

// Upload session status values.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
	SessionExpired   = "expired"
	SessionCancelled = "cancelled"
)

type UploadSession struct {
	SessionKey  string    `json:"session_key"`
	FileID      string    `json:"file_id"`
	ChunkSize   int64     `json:"chunk_size"`
	TotalChunks int       `json:"total_chunks"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`

	// ChunkDigests maps a received chunk index to the hex SHA-256 of its
	// bytes. A re-send of the same index must carry the same digest.
	ChunkDigests map[int]string `json:"chunk_digests"`
}

func (s *UploadSession) ReceivedCount() int {
	return len(s.ChunkDigests)
}

// Complete reports whether every index 0..TotalChunks-1 has been received.
func (s *UploadSession) Complete() bool {
	return len(s.ChunkDigests) == s.TotalChunks
}
