package transfer

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedApprovedRequest(t *testing.T, store *storage.MemoryStore, objects *storage.MemoryObjects, payload []byte) (models.File, models.AccessRequest) {
	t.Helper()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)
	require.NoError(t, objects.Put(f.StorageKey, bytes.NewReader(payload), int64(len(payload)), "application/octet-stream"))

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)
	r, err = m.Approve(testOwner, r.RequestID, "request-wrapped-key")
	require.NoError(t, err)
	return f, r
}

func TestOpenCiphertext(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	payload := []byte("nonce||ciphertext")
	f, r := seedApprovedRequest(t, store, objects, payload)

	e := NewEscrow(store, objects)
	body, gotFile, err := e.OpenCiphertext(r.RequestID)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, f.ID, gotFile.ID)

	// The download consumed one slot.
	stored, _ := store.GetFile(f.ID)
	assert.Equal(t, 1, stored.DownloadCount)
}

func TestOpenCiphertext_Denied(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	e := NewEscrow(store, objects)
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	_, _, err := e.OpenCiphertext("nosuchreq123")
	assert.ErrorIs(t, err, ErrNotFound)

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)
	_, _, err = e.OpenCiphertext(r.RequestID)
	assert.ErrorIs(t, err, ErrNotApproved)

	_, err = m.Reject(testOwner, r.RequestID, "")
	require.NoError(t, err)
	_, _, err = e.OpenCiphertext(r.RequestID)
	assert.ErrorIs(t, err, ErrNotApproved)

	_, err = m.Approve(testOwner, r.RequestID, "k")
	require.NoError(t, err)
	blocked := true
	_, ok := store.UpdateFileFlags(f.ID, nil, &blocked, nil)
	require.True(t, ok)
	_, _, err = e.OpenCiphertext(r.RequestID)
	assert.ErrorIs(t, err, ErrDownloadsBlocked)
}

// Two approved requests share the file's download budget. With
// max_downloads=1 whichever downloads first wins and the other is refused.
func TestOpenCiphertext_SharedBudget(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, func(f *models.File) { f.MaxDownloads = 1 })
	require.NoError(t, objects.Put(f.StorageKey, bytes.NewReader([]byte("ct")), 2, "application/octet-stream"))

	first, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)
	second, err := m.Create(f.ShareID, "", "b"+testIPHash[1:])
	require.NoError(t, err)
	for _, id := range []string{first.RequestID, second.RequestID} {
		_, err = m.Approve(testOwner, id, "k")
		require.NoError(t, err)
	}

	e := NewEscrow(store, objects)
	body, _, err := e.OpenCiphertext(first.RequestID)
	require.NoError(t, err)
	body.Close()

	_, _, err = e.OpenCiphertext(second.RequestID)
	assert.ErrorIs(t, err, ErrLimitReached)

	// A retry on the winning request is refused too; the budget is spent.
	_, _, err = e.OpenCiphertext(first.RequestID)
	assert.ErrorIs(t, err, ErrLimitReached)
}

// download_count never exceeds max_downloads no matter how many releases
// race at the boundary.
func TestOpenCiphertext_ConcurrentLimit(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	f, r := seedApprovedRequest(t, store, objects, []byte("ct"))

	e := NewEscrow(store, objects)
	var succeeded atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _, err := e.OpenCiphertext(r.RequestID)
			if err == nil {
				body.Close()
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(f.MaxDownloads), succeeded.Load())
	stored, _ := store.GetFile(f.ID)
	assert.Equal(t, f.MaxDownloads, stored.DownloadCount)
}

func TestReleaseKey(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	f, r := seedApprovedRequest(t, store, objects, []byte("ct"))

	e := NewEscrow(store, objects)
	key, err := e.ReleaseKey(r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "request-wrapped-key", key)

	// Key fetches do not consume download slots and may repeat.
	key, err = e.ReleaseKey(r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "request-wrapped-key", key)
	stored, _ := store.GetFile(f.ID)
	assert.Equal(t, 0, stored.DownloadCount)
}

// The download that spends the last slot must not lock its own key away:
// download ciphertext first, fetch the key after, in the normal client order.
func TestReleaseKey_AfterFinalDownload(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, func(f *models.File) { f.MaxDownloads = 1 })
	require.NoError(t, objects.Put(f.StorageKey, bytes.NewReader([]byte("ct")), 2, "application/octet-stream"))

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)
	_, err = m.Approve(testOwner, r.RequestID, "wrapped-key")
	require.NoError(t, err)

	e := NewEscrow(store, objects)
	body, _, err := e.OpenCiphertext(r.RequestID)
	require.NoError(t, err)
	body.Close()

	// Counter is exhausted; the key still comes out.
	key, err := e.ReleaseKey(r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, "wrapped-key", key)

	// A second ciphertext download stays refused.
	_, _, err = e.OpenCiphertext(r.RequestID)
	assert.ErrorIs(t, err, ErrLimitReached)
}

// Approvals recorded without per-request material fall back to the key
// escrowed at upload completion.
func TestReleaseKey_FileFallback(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	m := NewRequestMachine(store)
	f := seedCompletedFile(t, store, nil)

	r, err := m.Create(f.ShareID, "", testIPHash)
	require.NoError(t, err)
	_, err = m.Approve(testOwner, r.RequestID, "k")
	require.NoError(t, err)

	// Blank out the request-level copy to exercise the fallback path.
	stored, exists := store.GetRequest(r.RequestID)
	require.True(t, exists)
	stored.EncryptedKey = ""
	require.NoError(t, store.SaveRequest(stored))

	e := NewEscrow(store, objects)
	key, err := e.ReleaseKey(r.RequestID)
	require.NoError(t, err)
	assert.Equal(t, f.EncryptedKey, key)
}

func TestReleaseKey_Gated(t *testing.T) {
	store := storage.NewMemoryStore()
	objects := storage.NewMemoryObjects()
	_, r := seedApprovedRequest(t, store, objects, []byte("ct"))
	f, _ := store.GetFile(r.FileID)

	invalidated := true
	_, ok := store.UpdateFileFlags(f.ID, &invalidated, nil, nil)
	require.True(t, ok)

	e := NewEscrow(store, objects)
	_, err := e.ReleaseKey(r.RequestID)
	assert.ErrorIs(t, err, ErrInvalidated)
}
