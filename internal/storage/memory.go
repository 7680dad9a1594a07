package storage

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
)

// MemoryStore implements Store in process memory. It backs tests and local
// development; the mutex gives it the same atomicity guarantees the
// Postgres implementation gets from single-statement updates.
type MemoryStore struct {
	mu       sync.RWMutex
	files    map[string]*models.File
	sessions map[string]*models.UploadSession
	requests map[string]*models.AccessRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:    make(map[string]*models.File),
		sessions: make(map[string]*models.UploadSession),
		requests: make(map[string]*models.AccessRequest),
	}
}

func (m *MemoryStore) CreateFile(f models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.files[f.ID]; exists {
		return errors.New("file already exists")
	}
	copied := f
	m.files[f.ID] = &copied
	return nil
}

func (m *MemoryStore) GetFile(fileID string) (models.File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, exists := m.files[fileID]
	if !exists {
		return models.File{}, false
	}
	return *f, true
}

func (m *MemoryStore) GetFileByShareID(shareID string) (models.File, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, f := range m.files {
		if f.ShareID == shareID {
			return *f, true
		}
	}
	return models.File{}, false
}

func (m *MemoryStore) CompleteFile(fileID, encryptedKey, storageKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, exists := m.files[fileID]
	if !exists {
		return errors.New("file not found")
	}
	f.EncryptedKey = encryptedKey
	f.StorageKey = storageKey
	f.UploadStatus = models.FileCompleted
	return nil
}

func (m *MemoryStore) SetFileStatus(fileID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, exists := m.files[fileID]
	if !exists {
		return errors.New("file not found")
	}
	f.UploadStatus = status
	return nil
}

func (m *MemoryStore) UpdateFileFlags(fileID string, invalidated, blocksDownloads, blocksRequests *bool) (models.File, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, exists := m.files[fileID]
	if !exists {
		return models.File{}, false
	}
	if invalidated != nil {
		f.IsInvalidated = *invalidated
	}
	if blocksDownloads != nil {
		f.BlocksDownloads = *blocksDownloads
	}
	if blocksRequests != nil {
		f.BlocksRequests = *blocksRequests
	}
	return *f, true
}

func (m *MemoryStore) IncrementDownloadCount(fileID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, exists := m.files[fileID]
	if !exists {
		return false, errors.New("file not found")
	}
	if f.DownloadCount >= f.MaxDownloads {
		return false, nil
	}
	f.DownloadCount++
	return true, nil
}

func (m *MemoryStore) ListUserFiles(userID string, limit, offset int) ([]models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files []models.File
	for _, f := range m.files {
		if f.UserID == userID {
			files = append(files, *f)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	if offset >= len(files) {
		return nil, nil
	}
	files = files[offset:]
	if limit < len(files) {
		files = files[:limit]
	}
	return files, nil
}

func (m *MemoryStore) CountUserFiles(userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, f := range m.files {
		if f.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountRequests(fileID string) (models.FileCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var counts models.FileCounts
	for _, r := range m.requests {
		if r.FileID != fileID {
			continue
		}
		counts.Requests++
		if r.Status == models.RequestPending {
			counts.PendingRequests++
		}
	}
	return counts, nil
}

func (m *MemoryStore) ListExpiredFiles(now time.Time) ([]models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var files []models.File
	for _, f := range m.files {
		if f.Expired(now) && f.StorageKey != "" && (!f.BlocksRequests || !f.BlocksDownloads) {
			files = append(files, *f)
		}
	}
	return files, nil
}

func (m *MemoryStore) DeleteUserFiles(userID string) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []models.File
	for id, f := range m.files {
		if f.UserID != userID {
			continue
		}
		deleted = append(deleted, *f)
		for rid, r := range m.requests {
			if r.FileID == id {
				delete(m.requests, rid)
			}
		}
		for key, s := range m.sessions {
			if s.FileID == id {
				delete(m.sessions, key)
			}
		}
		delete(m.files, id)
	}
	return deleted, nil
}

func (m *MemoryStore) CreateSession(s models.UploadSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.SessionKey]; exists {
		return errors.New("session already exists")
	}
	copied := s
	copied.ChunkDigests = make(map[int]string)
	m.sessions[s.SessionKey] = &copied
	return nil
}

func (m *MemoryStore) GetSession(sessionKey string) (models.UploadSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.sessions[sessionKey]
	if !exists {
		return models.UploadSession{}, false
	}
	copied := *s
	copied.ChunkDigests = make(map[int]string, len(s.ChunkDigests))
	for i, d := range s.ChunkDigests {
		copied.ChunkDigests[i] = d
	}
	return copied, true
}

func (m *MemoryStore) RecordChunk(sessionKey string, chunkIndex int, digest string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.sessions[sessionKey]
	if !exists {
		return "", false, errors.New("session not found")
	}
	if existing, received := s.ChunkDigests[chunkIndex]; received {
		return existing, false, nil
	}
	s.ChunkDigests[chunkIndex] = digest
	return digest, true, nil
}

func (m *MemoryStore) FinishSession(sessionKey, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.sessions[sessionKey]
	if !exists || s.Status != models.SessionActive {
		return false, nil
	}
	s.Status = status
	return true, nil
}

func (m *MemoryStore) ListLapsedSessions(now time.Time) ([]models.UploadSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sessions []models.UploadSession
	for _, s := range m.sessions {
		if s.Status == models.SessionActive && s.ExpiresAt.Before(now) {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func (m *MemoryStore) CreateRequest(r models.AccessRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[r.RequestID]; exists {
		return errors.New("request already exists")
	}
	copied := r
	m.requests[r.RequestID] = &copied
	return nil
}

func (m *MemoryStore) GetRequest(requestID string) (models.AccessRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, exists := m.requests[requestID]
	if !exists {
		return models.AccessRequest{}, false
	}
	return *r, true
}

func (m *MemoryStore) FindPendingRequest(fileID, ipHash string) (models.AccessRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.FileID == fileID && r.IPHash == ipHash && r.Status == models.RequestPending {
			return *r, true
		}
	}
	return models.AccessRequest{}, false
}

func (m *MemoryStore) SaveRequest(r models.AccessRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[r.RequestID]; !exists {
		return errors.New("request not found")
	}
	copied := r
	m.requests[r.RequestID] = &copied
	return nil
}

func (m *MemoryStore) ListFileRequests(fileID string) ([]models.AccessRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var requests []models.AccessRequest
	for _, r := range m.requests {
		if r.FileID == fileID {
			requests = append(requests, *r)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
	return requests, nil
}

// MemoryObjects implements ObjectStorage in process memory.
type MemoryObjects struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: make(map[string][]byte)}
}

func (m *MemoryObjects) Put(objectName string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return nil
}

func (m *MemoryObjects) Get(objectName string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, exists := m.objects[objectName]
	if !exists {
		return nil, errors.New("object not found: " + objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryObjects) Delete(objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func (m *MemoryObjects) DeletePrefix(prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			delete(m.objects, name)
		}
	}
	return nil
}

// Len reports the number of stored objects. Test helper.
func (m *MemoryObjects) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
