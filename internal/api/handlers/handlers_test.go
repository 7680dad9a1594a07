package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
	"github.com/SecurePass-Share/Transfer-Service/internal/transfer"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *storage.MemoryStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	objects := storage.NewMemoryObjects()
	policy := transfer.Policy{
		MaxFileSize:     1 << 30,
		MinChunkSize:    4,
		MaxChunkSize:    16 << 20,
		MinExpiresHours: 1,
		MaxExpiresHours: 168,
		MaxDownloadsCap: 100,
		SessionTTL:      24 * time.Hour,
	}
	Init(
		transfer.NewUploader(store, objects, policy),
		transfer.NewRequestMachine(store),
		transfer.NewEscrow(store, objects),
		store,
		"test-salt",
	)

	r := gin.New()
	r.GET("/api/shares/:shareId", GetShare)
	authed := r.Group("", func(c *gin.Context) {
		c.Set("user_id", "owner-1")
		c.Next()
	})
	authed.PATCH("/api/files/:fileId", UpdateFileFlags)
	return r
}

func seedFile(t *testing.T, store *storage.MemoryStore, mutate func(*models.File)) models.File {
	t.Helper()
	now := time.Now()
	f := models.File{
		ID:            "file-1",
		ShareID:       "shareabc1234",
		UserID:        "owner-1",
		Filename:      "report.pdf.enc",
		Size:          2048,
		MimeType:      "application/pdf",
		UploadStatus:  models.FileCompleted,
		EncryptedKey:  "escrowed-key",
		StorageKey:    storage.FileObjectName("file-1"),
		CreatedAt:     now,
		ExpiresAt:     now.Add(24 * time.Hour),
		MaxDownloads:  5,
		DownloadCount: 2,
	}
	if mutate != nil {
		mutate(&f)
	}
	require.NoError(t, store.CreateFile(f))
	return f
}

func TestGetShare_PublicFields(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRouter(store)
	f := seedFile(t, store, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/shares/"+f.ShareID, nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, f.ShareID, body["share_id"])
	assert.Equal(t, f.Filename, body["filename"])
	assert.Equal(t, float64(f.MaxDownloads), body["max_downloads"])
	assert.Equal(t, float64(f.DownloadCount), body["download_count"])

	// Never the owner or key material.
	assert.NotContains(t, body, "user_id")
	assert.NotContains(t, body, "encrypted_key")
}

func TestGetShare_NotFoundAndGone(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRouter(store)
	seedFile(t, store, func(f *models.File) { f.ExpiresAt = time.Now().Add(-time.Hour) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shares/doesnotexist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shares/shareabc1234", nil))
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestUpdateFileFlags_ExpiredFileRefused(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRouter(store)
	f := seedFile(t, store, func(f *models.File) { f.ExpiresAt = time.Now().Add(-time.Hour) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/files/"+f.ID, strings.NewReader(`{"blocks_downloads":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGone, w.Code)
	kept, _ := store.GetFile(f.ID)
	assert.False(t, kept.BlocksDownloads)
}

func TestUpdateFileFlags_LiveFile(t *testing.T) {
	store := storage.NewMemoryStore()
	r := newTestRouter(store)
	f := seedFile(t, store, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/files/"+f.ID, strings.NewReader(`{"blocks_downloads":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	kept, _ := store.GetFile(f.ID)
	assert.True(t, kept.BlocksDownloads)
}
