package transfer

import (
	"fmt"
	"io"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
)

// Escrow releases the ciphertext and the escrowed decryption key, each
// gated by Evaluate against the latest file and request state.
//
// The download counter increments on ciphertext retrieval only. Key
// retrieval neither consumes nor checks the counter, so a client can fetch
// the key for the download that spent the last slot, and fetch it again if
// the response is lost mid-decrypt.
type Escrow struct {
	store   storage.Store
	objects storage.ObjectStorage
	now     func() time.Time
}

func NewEscrow(store storage.Store, objects storage.ObjectStorage) *Escrow {
	return &Escrow{store: store, objects: objects, now: time.Now}
}

// OpenCiphertext gates, claims one download slot atomically, and opens the
// stored ciphertext object for streaming. The file is returned for the
// response headers.
func (e *Escrow) OpenCiphertext(requestID string) (io.ReadCloser, models.File, error) {
	file, _, err := e.gated(requestID, Evaluate)
	if err != nil {
		return nil, models.File{}, err
	}

	// The compare-and-increment is the real limit check; the gate's
	// count comparison above only filters already-exhausted files.
	claimed, err := e.store.IncrementDownloadCount(file.ID)
	if err != nil {
		return nil, models.File{}, fmt.Errorf("failed to claim download slot: %w", err)
	}
	if !claimed {
		return nil, models.File{}, ErrLimitReached
	}

	reader, err := e.objects.Get(file.StorageKey)
	if err != nil {
		return nil, models.File{}, fmt.Errorf("failed to open ciphertext for %s: %w", file.ID, err)
	}
	return reader, file, nil
}

// ReleaseKey gates and returns the escrowed key material: the material the
// owner recorded for this request at approval, or the file-level key from
// upload completion when none was recorded. No counter increment, and the
// download limit does not apply: the key must stay fetchable after the
// ciphertext download that consumed the last slot.
func (e *Escrow) ReleaseKey(requestID string) (string, error) {
	file, request, err := e.gated(requestID, EvaluateKeyRelease)
	if err != nil {
		return "", err
	}
	if request.EncryptedKey != "" {
		return request.EncryptedKey, nil
	}
	return file.EncryptedKey, nil
}

func (e *Escrow) gated(requestID string, evaluate func(models.File, models.AccessRequest, time.Time) Decision) (models.File, models.AccessRequest, error) {
	request, exists := e.store.GetRequest(requestID)
	if !exists {
		return models.File{}, models.AccessRequest{}, ErrNotFound
	}
	file, exists := e.store.GetFile(request.FileID)
	if !exists {
		return models.File{}, models.AccessRequest{}, ErrNotFound
	}
	if file.UploadStatus != models.FileCompleted {
		return models.File{}, models.AccessRequest{}, ErrFileNotReady
	}
	if decision := evaluate(file, request, e.now()); !decision.Allowed {
		return models.File{}, models.AccessRequest{}, decision.Err()
	}
	return file, request, nil
}
