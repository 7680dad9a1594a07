package transfer

import (
	"fmt"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
)

// RequestMachine owns the access-request lifecycle. Requests are created
// anonymously against a share id and transitioned only by the file owner:
// pending→approved, pending→rejected, approved→rejected (revoke) and
// rejected→approved (re-approval) are all legal. Terminal file conditions
// (expiry, invalidation) are not enforced here; the gate does that at
// release time against the latest state.
type RequestMachine struct {
	store storage.Store
	now   func() time.Time
}

func NewRequestMachine(store storage.Store) *RequestMachine {
	return &RequestMachine{store: store, now: time.Now}
}

// Create files a new access request against a share. A requester with an
// existing pending request for the same file gets that request back
// instead of a duplicate row.
func (m *RequestMachine) Create(shareID, reason, ipHash string) (models.AccessRequest, error) {
	file, exists := m.store.GetFileByShareID(shareID)
	if !exists {
		return models.AccessRequest{}, ErrNotFound
	}
	if file.UploadStatus != models.FileCompleted {
		return models.AccessRequest{}, ErrFileNotReady
	}
	if file.Expired(m.now()) || file.IsInvalidated {
		return models.AccessRequest{}, ErrFileGone
	}
	if file.BlocksRequests {
		return models.AccessRequest{}, ErrRequestsBlocked
	}
	if file.DownloadCount >= file.MaxDownloads {
		return models.AccessRequest{}, ErrLimitReached
	}
	if len(reason) > 500 {
		return models.AccessRequest{}, fmt.Errorf("%w: reason too long", ErrValidation)
	}

	if existing, found := m.store.FindPendingRequest(file.ID, ipHash); found {
		return existing, nil
	}

	requestID, err := NewRequestID()
	if err != nil {
		return models.AccessRequest{}, err
	}
	request := models.AccessRequest{
		RequestID: requestID,
		FileID:    file.ID,
		Reason:    reason,
		Status:    models.RequestPending,
		IPHash:    ipHash,
		CreatedAt: m.now(),
	}
	if err := m.store.CreateRequest(request); err != nil {
		return models.AccessRequest{}, fmt.Errorf("failed to create access request: %w", err)
	}
	return request, nil
}

// Approve transitions a pending or rejected request to approved and records
// the key material to release to this requester. Retrying with identical
// material is a no-op; different material against an approved request is
// refused.
func (m *RequestMachine) Approve(ownerID, requestID, keyMaterial string) (models.AccessRequest, error) {
	request, _, err := m.owned(ownerID, requestID)
	if err != nil {
		return models.AccessRequest{}, err
	}

	if keyMaterial == "" {
		return models.AccessRequest{}, fmt.Errorf("%w: missing key material", ErrValidation)
	}

	if request.Status == models.RequestApproved {
		if request.EncryptedKey == keyMaterial {
			return request, nil
		}
		return models.AccessRequest{}, ErrAlreadyApproved
	}

	now := m.now()
	request.Status = models.RequestApproved
	request.EncryptedKey = keyMaterial
	request.ApprovedAt = &now
	request.RejectedAt = nil
	if err := m.store.SaveRequest(request); err != nil {
		return models.AccessRequest{}, fmt.Errorf("failed to approve request: %w", err)
	}
	return request, nil
}

// Reject transitions a pending or approved request to rejected; rejecting
// an approved request revokes it. Repeated rejection is a no-op.
func (m *RequestMachine) Reject(ownerID, requestID, reason string) (models.AccessRequest, error) {
	request, _, err := m.owned(ownerID, requestID)
	if err != nil {
		return models.AccessRequest{}, err
	}

	if request.Status == models.RequestRejected {
		return request, nil
	}

	now := m.now()
	request.Status = models.RequestRejected
	request.RejectedAt = &now
	request.ApprovedAt = nil
	if reason != "" {
		request.Reason = reason
	}
	if err := m.store.SaveRequest(request); err != nil {
		return models.AccessRequest{}, fmt.Errorf("failed to reject request: %w", err)
	}
	return request, nil
}

// Status returns a request with its file and the gate's current verdict.
// Requesters poll this; it always reflects the latest committed state.
func (m *RequestMachine) Status(requestID string) (models.AccessRequest, models.File, Decision, error) {
	request, exists := m.store.GetRequest(requestID)
	if !exists {
		return models.AccessRequest{}, models.File{}, Decision{}, ErrNotFound
	}
	file, exists := m.store.GetFile(request.FileID)
	if !exists {
		return models.AccessRequest{}, models.File{}, Decision{}, ErrNotFound
	}
	return request, file, Evaluate(file, request, m.now()), nil
}

// ListForFile returns every request filed against one of the owner's files,
// newest first. Kept forever as the audit trail.
func (m *RequestMachine) ListForFile(ownerID, fileID string) ([]models.AccessRequest, error) {
	file, exists := m.store.GetFile(fileID)
	if !exists {
		return nil, ErrNotFound
	}
	if file.UserID != ownerID {
		return nil, ErrNotOwner
	}
	return m.store.ListFileRequests(fileID)
}

func (m *RequestMachine) owned(ownerID, requestID string) (models.AccessRequest, models.File, error) {
	request, exists := m.store.GetRequest(requestID)
	if !exists {
		return models.AccessRequest{}, models.File{}, ErrNotFound
	}
	file, exists := m.store.GetFile(request.FileID)
	if !exists {
		return models.AccessRequest{}, models.File{}, ErrNotFound
	}
	if file.UserID != ownerID {
		return models.AccessRequest{}, models.File{}, ErrNotOwner
	}
	return request, file, nil
}
