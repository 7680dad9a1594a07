package storage

import (
	"fmt"
	"io"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
)

// Store defines the contract for metadata persistence: file rows, upload
// sessions and access requests. Implementations must make
// IncrementDownloadCount and FinishSession atomic; everything else is
// last-writer-wins at the field level.
type Store interface {
	// Files
	CreateFile(f models.File) error
	GetFile(fileID string) (models.File, bool)
	GetFileByShareID(shareID string) (models.File, bool)
	CompleteFile(fileID, encryptedKey, storageKey string) error
	SetFileStatus(fileID, status string) error
	UpdateFileFlags(fileID string, invalidated, blocksDownloads, blocksRequests *bool) (models.File, bool)
	// IncrementDownloadCount adds one to download_count only while it is
	// still below max_downloads. Returns false once the limit is reached.
	IncrementDownloadCount(fileID string) (bool, error)
	ListUserFiles(userID string, limit, offset int) ([]models.File, error)
	CountUserFiles(userID string) (int64, error)
	CountRequests(fileID string) (models.FileCounts, error)
	ListExpiredFiles(now time.Time) ([]models.File, error)
	DeleteUserFiles(userID string) ([]models.File, error)

	// Upload sessions
	CreateSession(s models.UploadSession) error
	GetSession(sessionKey string) (models.UploadSession, bool)
	// RecordChunk claims a chunk index for the given digest. The claim is
	// first-wins: the returned digest is the one that holds the index, and
	// claimed reports whether this call took it.
	RecordChunk(sessionKey string, chunkIndex int, digest string) (string, bool, error)
	// FinishSession moves an active session to the given terminal status.
	// Returns false if the session was not active (single-use guarantee).
	FinishSession(sessionKey, status string) (bool, error)
	ListLapsedSessions(now time.Time) ([]models.UploadSession, error)

	// Access requests
	CreateRequest(r models.AccessRequest) error
	GetRequest(requestID string) (models.AccessRequest, bool)
	FindPendingRequest(fileID, ipHash string) (models.AccessRequest, bool)
	SaveRequest(r models.AccessRequest) error
	ListFileRequests(fileID string) ([]models.AccessRequest, error)
}

// ObjectStorage holds ciphertext bytes: staged chunks during an upload
// session and the assembled object after completion.
type ObjectStorage interface {
	Put(objectName string, reader io.Reader, size int64, contentType string) error
	Get(objectName string) (io.ReadCloser, error)
	Delete(objectName string) error
	DeletePrefix(prefix string) error
}

// Object key layout. Chunks are staged per file and removed once the
// assembled object exists.
func ChunkObjectName(fileID string, chunkIndex int) string {
	return fmt.Sprintf("%s/chunks/%04d", FilePrefix(fileID), chunkIndex)
}

func FileObjectName(fileID string) string {
	return FilePrefix(fileID) + "/file"
}

func FilePrefix(fileID string) string {
	return "files/" + fileID
}
