package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/SecurePass-Share/Transfer-Service/internal/services"
	"github.com/gin-gonic/gin"
)

// GetShare returns the public view of a shared file. Anonymous; never
// exposes key material or the owner.
func GetShare(c *gin.Context) {
	shareID := c.Param("shareId")

	file, exists := store.GetFileByShareID(shareID)
	if !exists || file.UploadStatus != models.FileCompleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "share not found"})
		return
	}
	if file.Expired(time.Now()) || file.IsInvalidated {
		c.JSON(http.StatusGone, gin.H{"error": "share no longer available"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"share_id":        file.ShareID,
		"filename":        file.Filename,
		"size":            file.Size,
		"mime_type":       file.MimeType,
		"created_at":      file.CreatedAt,
		"expires_at":      file.ExpiresAt,
		"max_downloads":   file.MaxDownloads,
		"download_count":  file.DownloadCount,
		"blocks_requests": file.BlocksRequests,
	})
}

type accessRequestBody struct {
	ShareID string `json:"share_id" binding:"required"`
	Reason  string `json:"reason"`
}

// CreateAccessRequest files an anonymous access request against a share.
// Repeated requests from the same address return the existing pending one.
func CreateAccessRequest(c *gin.Context) {
	var body accessRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	request, err := requests.Create(body.ShareID, body.Reason, requesterHash(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := services.PublishEvent("requests.created", gin.H{
		"request_id": request.RequestID,
		"file_id":    request.FileID,
	}); err != nil {
		log.Printf("[NATS] requests.created publish failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": request.RequestID,
		"status":     request.Status,
		"created_at": request.CreatedAt,
	})
}
