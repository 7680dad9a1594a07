package transfer

import (
	"testing"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner  = "owner-1"
	testIPHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func seedCompletedFile(t *testing.T, store *storage.MemoryStore, mutate func(*models.File)) models.File {
	t.Helper()
	now := time.Now()
	f := models.File{
		ID:           "file-" + t.Name(),
		ShareID:      "share" + t.Name()[:min(7, len(t.Name()))],
		UserID:       testOwner,
		Filename:     "data.bin.enc",
		Size:         16,
		MimeType:     "application/octet-stream",
		UploadStatus: models.FileCompleted,
		EncryptedKey: "file-level-key",
		StorageKey:   storage.FileObjectName("file-" + t.Name()),
		CreatedAt:    now,
		ExpiresAt:    now.Add(24 * time.Hour),
		MaxDownloads: 3,
	}
	if mutate != nil {
		mutate(&f)
	}
	require.NoError(t, store.CreateFile(f))
	return f
}

func TestCreateRequest(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	r, err := m.Create(f.ShareID, "please share", testIPHash)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, r.Status)
	assert.Len(t, r.RequestID, TokenLength)
	assert.Equal(t, f.ID, r.FileID)

	stored, exists := store.GetRequest(r.RequestID)
	require.True(t, exists)
	assert.Equal(t, "please share", stored.Reason)
}

func TestCreateRequest_UnknownShare(t *testing.T) {
	m := NewRequestMachine(storage.NewMemoryStore())
	_, err := m.Create("nosuchshare1", "", testIPHash)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRequest_Blocked(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, func(f *models.File) { f.BlocksRequests = true })

	_, err := m.Create(f.ShareID, "", testIPHash)
	assert.ErrorIs(t, err, ErrRequestsBlocked)

	// No row was created.
	requests, lerr := store.ListFileRequests(f.ID)
	require.NoError(t, lerr)
	assert.Empty(t, requests)
}

func TestCreateRequest_DeadFile(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)

	expired := seedCompletedFile(t, store, func(f *models.File) {
		f.ID += "-expired"
		f.ShareID = "expiredshare"
		f.ExpiresAt = time.Now().Add(-time.Hour)
	})
	_, err := m.Create(expired.ShareID, "", testIPHash)
	assert.ErrorIs(t, err, ErrFileGone)

	invalidated := seedCompletedFile(t, store, func(f *models.File) {
		f.ID += "-invalid"
		f.ShareID = "invalidshare"
		f.IsInvalidated = true
	})
	_, err = m.Create(invalidated.ShareID, "", testIPHash)
	assert.ErrorIs(t, err, ErrFileGone)

	uploading := seedCompletedFile(t, store, func(f *models.File) {
		f.ID += "-uploading"
		f.ShareID = "pendingshare"
		f.UploadStatus = models.FileUploading
	})
	_, err = m.Create(uploading.ShareID, "", testIPHash)
	assert.ErrorIs(t, err, ErrFileNotReady)
}

func TestCreateRequest_CoalescesPending(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	first, err := m.Create(f.ShareID, "first", testIPHash)
	require.NoError(t, err)
	second, err := m.Create(f.ShareID, "second", testIPHash)
	require.NoError(t, err)
	assert.Equal(t, first.RequestID, second.RequestID)

	// A different requester gets a fresh row.
	other, err := m.Create(f.ShareID, "", "b"+testIPHash[1:])
	require.NoError(t, err)
	assert.NotEqual(t, first.RequestID, other.RequestID)
}

func TestApproveRejectTransitions(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)

	// pending → approved
	approved, err := m.Approve(testOwner, r.RequestID, "wrapped-key-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	// approved → rejected (revoke)
	rejected, err := m.Reject(testOwner, r.RequestID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)

	// rejected → approved (re-approval); gate sees the latest state only.
	again, err := m.Approve(testOwner, r.RequestID, "wrapped-key-2")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, again.Status)
	assert.Equal(t, "wrapped-key-2", again.EncryptedKey)

	_, _, decision, err := m.Status(r.RequestID)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestApprove_Idempotency(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)

	_, err = m.Approve(testOwner, r.RequestID, "wrapped-key")
	require.NoError(t, err)

	// Identical retry: no-op.
	again, err := m.Approve(testOwner, r.RequestID, "wrapped-key")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, again.Status)

	// Different material against an approved request: refused.
	_, err = m.Approve(testOwner, r.RequestID, "other-key")
	assert.ErrorIs(t, err, ErrAlreadyApproved)
}

func TestReject_Idempotency(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)

	_, err = m.Reject(testOwner, r.RequestID, "")
	require.NoError(t, err)
	rejected, err := m.Reject(testOwner, r.RequestID, "")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
}

func TestApproveReject_NotOwner(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)

	_, err = m.Approve("intruder", r.RequestID, "k")
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = m.Reject("intruder", r.RequestID, "")
	assert.ErrorIs(t, err, ErrNotOwner)
}

// Invalidating the file flips the gate without touching the request row.
func TestStatus_InvalidationDeniesButKeepsStatus(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)
	_, err = m.Approve(testOwner, r.RequestID, "k")
	require.NoError(t, err)

	invalidated := true
	_, ok := store.UpdateFileFlags(f.ID, &invalidated, nil, nil)
	require.True(t, ok)

	request, _, decision, err := m.Status(r.RequestID)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyInvalidated, decision.Reason)
	assert.Equal(t, models.RequestApproved, request.Status)
}

func TestListForFile_OwnerOnly(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	_, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)

	requests, err := m.ListForFile(testOwner, f.ID)
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	_, err = m.ListForFile("intruder", f.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}
