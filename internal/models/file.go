package models

import (
	"time"
)

// Upload status values for File.UploadStatus.
const (
	FileUploading = "uploading"
	FileCompleted = "completed"
	FileFailed    = "failed"
)

type File struct {
	ID              string    `json:"file_id"`
	ShareID         string    `json:"share_id"`
	UserID          string    `json:"-"`
	Filename        string    `json:"filename"`
	Size            int64     `json:"size"`
	MimeType        string    `json:"mime_type"`
	UploadStatus    string    `json:"status"`
	EncryptedKey    string    `json:"-"`
	StorageKey      string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	MaxDownloads    int       `json:"max_downloads"`
	DownloadCount   int       `json:"download_count"`
	IsInvalidated   bool      `json:"is_invalidated"`
	BlocksDownloads bool      `json:"blocks_downloads"`
	BlocksRequests  bool      `json:"blocks_requests"`
}

// Expired reports whether the file is past its calendar expiry at t.
// Expiry is a read-time condition; rows are never mutated to mark it.
func (f *File) Expired(t time.Time) bool {
	return !t.Before(f.ExpiresAt)
}

// FileCounts carries per-file request counters for owner listings.
type FileCounts struct {
	Requests        int `json:"request_count"`
	PendingRequests int `json:"pending_request_count"`
}
