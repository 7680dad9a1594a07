package handlers

import (
	"encoding/base64"
	"log"
	"net/http"

	"github.com/SecurePass-Share/Transfer-Service/internal/services"
	"github.com/SecurePass-Share/Transfer-Service/internal/transfer"
	"github.com/gin-gonic/gin"
)

type initiateRequest struct {
	Filename       string `json:"filename" binding:"required"`
	Size           int64  `json:"size" binding:"required"`
	MimeType       string `json:"mime_type"`
	ChunkSize      int64  `json:"chunk_size" binding:"required"`
	ExpiresInHours int    `json:"expires_in_hours" binding:"required"`
	MaxDownloads   int    `json:"max_downloads" binding:"required"`
}

// InitiateUpload opens an upload session for a pre-encrypted file.
func InitiateUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := uploader.Initiate(transfer.InitiateParams{
		OwnerID:        userID,
		Filename:       req.Filename,
		Size:           req.Size,
		MimeType:       req.MimeType,
		ChunkSize:      req.ChunkSize,
		ExpiresInHours: req.ExpiresInHours,
		MaxDownloads:   req.MaxDownloads,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type chunkRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	ChunkIndex *int   `json:"chunk_index" binding:"required"`
	ChunkData  string `json:"chunk_data" binding:"required"`
}

// UploadChunk stages one base64-encoded ciphertext chunk. The session key is
// the only credential; the uploader holds it from InitiateUpload.
func UploadChunk(c *gin.Context) {
	var req chunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ChunkData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_data is not valid base64"})
		return
	}

	result, err := uploader.AcceptChunk(req.SessionKey, *req.ChunkIndex, data)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type completeRequest struct {
	SessionKey   string `json:"session_key" binding:"required"`
	EncryptedKey string `json:"encrypted_key" binding:"required"`
}

// CompleteUpload assembles the staged chunks and escrows the exported key.
func CompleteUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := uploader.Complete(userID, req.SessionKey, req.EncryptedKey)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := services.PublishEvent("files.uploaded", gin.H{
		"file_id":  result.FileID,
		"share_id": result.ShareID,
		"user_id":  userID,
	}); err != nil {
		log.Printf("[NATS] files.uploaded publish failed: %v", err)
	}

	c.JSON(http.StatusOK, result)
}

type cancelRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
}

// CancelUpload abandons an active session and frees its staged chunks.
func CancelUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := uploader.Cancel(userID, req.SessionKey); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
