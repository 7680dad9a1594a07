package transfer

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
	"github.com/google/uuid"
)

// Policy carries the externally supplied upload bounds. Values come from
// configuration; the protocol itself only enforces them.
type Policy struct {
	MaxFileSize     int64
	MinChunkSize    int64
	MaxChunkSize    int64
	MinExpiresHours int
	MaxExpiresHours int
	MaxDownloadsCap int
	SessionTTL      time.Duration
}

// Uploader manages upload sessions: initiation, chunk receipt and final
// assembly. Chunks are staged in object storage under the session's file
// prefix and merged into one object at Complete.
type Uploader struct {
	store   storage.Store
	objects storage.ObjectStorage
	policy  Policy
	now     func() time.Time
}

func NewUploader(store storage.Store, objects storage.ObjectStorage, policy Policy) *Uploader {
	return &Uploader{
		store:   store,
		objects: objects,
		policy:  policy,
		now:     time.Now,
	}
}

type InitiateParams struct {
	OwnerID        string
	Filename       string
	Size           int64
	MimeType       string
	ChunkSize      int64
	ExpiresInHours int
	MaxDownloads   int
}

type InitiateResult struct {
	SessionKey string `json:"session_key"`
	FileID     string `json:"file_id"`
	ShareID    string `json:"share_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Initiate validates the announced upload against policy, pre-allocates the
// file row and opens a single-use session.
func (u *Uploader) Initiate(p InitiateParams) (InitiateResult, error) {
	if p.Filename == "" || len(p.Filename) > 255 {
		return InitiateResult{}, fmt.Errorf("%w: filename", ErrValidation)
	}
	if p.Size <= 0 || p.Size > u.policy.MaxFileSize {
		return InitiateResult{}, fmt.Errorf("%w: size %d out of bounds", ErrValidation, p.Size)
	}
	if p.ChunkSize < u.policy.MinChunkSize || p.ChunkSize > u.policy.MaxChunkSize {
		return InitiateResult{}, fmt.Errorf("%w: chunk_size %d out of bounds", ErrValidation, p.ChunkSize)
	}
	if p.ExpiresInHours < u.policy.MinExpiresHours || p.ExpiresInHours > u.policy.MaxExpiresHours {
		return InitiateResult{}, fmt.Errorf("%w: expires_in_hours %d out of bounds", ErrValidation, p.ExpiresInHours)
	}
	if p.MaxDownloads < 1 || p.MaxDownloads > u.policy.MaxDownloadsCap {
		return InitiateResult{}, fmt.Errorf("%w: max_downloads %d out of bounds", ErrValidation, p.MaxDownloads)
	}

	shareID, err := NewShareID()
	if err != nil {
		return InitiateResult{}, err
	}
	sessionKey, err := NewSessionKey()
	if err != nil {
		return InitiateResult{}, err
	}

	now := u.now()
	chunkCount := int((p.Size + p.ChunkSize - 1) / p.ChunkSize)

	file := models.File{
		ID:           uuid.New().String(),
		ShareID:      shareID,
		UserID:       p.OwnerID,
		Filename:     p.Filename,
		Size:         p.Size,
		MimeType:     p.MimeType,
		UploadStatus: models.FileUploading,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(p.ExpiresInHours) * time.Hour),
		MaxDownloads: p.MaxDownloads,
	}
	if err := u.store.CreateFile(file); err != nil {
		return InitiateResult{}, fmt.Errorf("failed to create file record: %w", err)
	}

	session := models.UploadSession{
		SessionKey:  sessionKey,
		FileID:      file.ID,
		ChunkSize:   p.ChunkSize,
		TotalChunks: chunkCount,
		Status:      models.SessionActive,
		CreatedAt:   now,
		ExpiresAt:   now.Add(u.policy.SessionTTL),
	}
	if err := u.store.CreateSession(session); err != nil {
		return InitiateResult{}, fmt.Errorf("failed to create upload session: %w", err)
	}

	return InitiateResult{
		SessionKey: sessionKey,
		FileID:     file.ID,
		ShareID:    shareID,
		ChunkCount: chunkCount,
	}, nil
}

type ChunkResult struct {
	ChunkIndex    int  `json:"chunk_index"`
	ReceivedCount int  `json:"received_count"`
	TotalChunks   int  `json:"total_chunks"`
	IsComplete    bool `json:"is_complete"`
}

// AcceptChunk stages one ciphertext chunk. Arrival order is free; sending
// the same index again with identical bytes is a no-op, with different
// bytes a conflict. The index is claimed for the digest before any bytes
// are staged, so racing submissions cannot overwrite each other: the claim
// is first-wins and losers with different bytes never write.
func (u *Uploader) AcceptChunk(sessionKey string, chunkIndex int, data []byte) (ChunkResult, error) {
	session, err := u.activeSession(sessionKey)
	if err != nil {
		return ChunkResult{}, err
	}
	if chunkIndex < 0 || chunkIndex >= session.TotalChunks {
		return ChunkResult{}, fmt.Errorf("%w: index %d, total %d", ErrIndexOutOfRange, chunkIndex, session.TotalChunks)
	}

	digest := ChunkDigest(data)
	winning, claimed, err := u.store.RecordChunk(sessionKey, chunkIndex, digest)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("failed to claim chunk: %w", err)
	}

	objectName := storage.ChunkObjectName(session.FileID, chunkIndex)
	if !claimed {
		if winning != digest {
			return ChunkResult{}, fmt.Errorf("%w: index %d re-sent with different bytes", ErrChunkConflict, chunkIndex)
		}
		// Duplicate of the claimed bytes. Re-stage if the earlier delivery
		// claimed the index but failed before its object landed.
		if reader, gerr := u.objects.Get(objectName); gerr != nil {
			if perr := u.objects.Put(objectName, bytes.NewReader(data), int64(len(data)), "application/octet-stream"); perr != nil {
				return ChunkResult{}, fmt.Errorf("failed to stage chunk: %w", perr)
			}
		} else {
			reader.Close()
		}
		received := session.ReceivedCount()
		if _, seen := session.ChunkDigests[chunkIndex]; !seen {
			received++
		}
		return ChunkResult{
			ChunkIndex:    chunkIndex,
			ReceivedCount: received,
			TotalChunks:   session.TotalChunks,
			IsComplete:    received == session.TotalChunks,
		}, nil
	}

	if err := u.objects.Put(objectName, bytes.NewReader(data), int64(len(data)), "application/octet-stream"); err != nil {
		return ChunkResult{}, fmt.Errorf("failed to stage chunk: %w", err)
	}

	received := session.ReceivedCount() + 1
	return ChunkResult{
		ChunkIndex:    chunkIndex,
		ReceivedCount: received,
		TotalChunks:   session.TotalChunks,
		IsComplete:    received == session.TotalChunks,
	}, nil
}

type CompleteResult struct {
	FileID  string `json:"file_id"`
	ShareID string `json:"share_id"`
}

// Complete assembles the staged chunks into the final ciphertext object and
// escrows the submitted key. The object write happens strictly before the
// key is stored, so a crash in between never leaves a discoverable key
// without bytes. The session becomes unusable afterwards.
func (u *Uploader) Complete(ownerID, sessionKey, exportedKey string) (CompleteResult, error) {
	session, err := u.activeSession(sessionKey)
	if err != nil {
		return CompleteResult{}, err
	}

	file, exists := u.store.GetFile(session.FileID)
	if !exists {
		return CompleteResult{}, ErrNotFound
	}
	if file.UserID != ownerID {
		return CompleteResult{}, ErrNotOwner
	}
	if !session.Complete() {
		return CompleteResult{}, fmt.Errorf("%w: %d of %d chunks received",
			ErrIncompleteUpload, session.ReceivedCount(), session.TotalChunks)
	}
	if exportedKey == "" {
		return CompleteResult{}, fmt.Errorf("%w: missing exported key", ErrValidation)
	}

	assembled, err := u.assemble(session)
	if err != nil {
		return CompleteResult{}, err
	}
	if int64(assembled.Len()) != file.Size {
		return CompleteResult{}, fmt.Errorf("%w: got %d bytes, announced %d",
			ErrSizeMismatch, assembled.Len(), file.Size)
	}

	objectName := storage.FileObjectName(file.ID)
	if err := u.objects.Put(objectName, bytes.NewReader(assembled.Bytes()), int64(assembled.Len()), "application/octet-stream"); err != nil {
		return CompleteResult{}, fmt.Errorf("failed to store ciphertext: %w", err)
	}

	// Single-use gate: only the first Complete past this point escrows.
	finished, err := u.store.FinishSession(sessionKey, models.SessionCompleted)
	if err != nil {
		return CompleteResult{}, err
	}
	if !finished {
		return CompleteResult{}, ErrInvalidSession
	}

	if err := u.store.CompleteFile(file.ID, exportedKey, objectName); err != nil {
		return CompleteResult{}, fmt.Errorf("failed to escrow key: %w", err)
	}

	// Staged chunks are no longer needed; best effort.
	for i := 0; i < session.TotalChunks; i++ {
		if err := u.objects.Delete(storage.ChunkObjectName(file.ID, i)); err != nil {
			log.Printf("Warning: failed to delete staged chunk %d for %s: %v", i, file.ID, err)
		}
	}

	return CompleteResult{FileID: file.ID, ShareID: file.ShareID}, nil
}

// Cancel invalidates an active session and frees its staged chunks.
func (u *Uploader) Cancel(ownerID, sessionKey string) error {
	session, err := u.activeSession(sessionKey)
	if err != nil {
		return err
	}
	file, exists := u.store.GetFile(session.FileID)
	if !exists {
		return ErrNotFound
	}
	if file.UserID != ownerID {
		return ErrNotOwner
	}

	cancelled, err := u.store.FinishSession(sessionKey, models.SessionCancelled)
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrInvalidSession
	}

	if err := u.store.SetFileStatus(file.ID, models.FileFailed); err != nil {
		log.Printf("Warning: failed to mark file %s failed: %v", file.ID, err)
	}
	if err := u.objects.DeletePrefix(storage.FilePrefix(file.ID)); err != nil {
		log.Printf("Warning: failed to delete staged chunks for %s: %v", file.ID, err)
	}
	return nil
}

func (u *Uploader) activeSession(sessionKey string) (models.UploadSession, error) {
	session, exists := u.store.GetSession(sessionKey)
	if !exists {
		return models.UploadSession{}, ErrInvalidSession
	}
	if session.Status != models.SessionActive {
		return models.UploadSession{}, ErrInvalidSession
	}
	if u.now().After(session.ExpiresAt) {
		if _, err := u.store.FinishSession(sessionKey, models.SessionExpired); err != nil {
			log.Printf("Warning: failed to expire session: %v", err)
		}
		return models.UploadSession{}, ErrInvalidSession
	}
	return session, nil
}

// assemble concatenates the staged chunks in index order, re-verifying each
// against its claimed digest so corrupted or swapped objects surface here
// instead of in the final ciphertext.
func (u *Uploader) assemble(session models.UploadSession) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	for i := 0; i < session.TotalChunks; i++ {
		reader, err := u.objects.Get(storage.ChunkObjectName(session.FileID, i))
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d: %w", i, err)
		}
		data, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d: %w", i, err)
		}
		if ChunkDigest(data) != session.ChunkDigests[i] {
			return nil, fmt.Errorf("%w: staged chunk %d does not match its recorded digest", ErrChunkConflict, i)
		}
		buf.Write(data)
	}
	return &buf, nil
}
