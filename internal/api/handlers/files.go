package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/internal/models"
	"github.com/gin-gonic/gin"
)

// ListRecentFiles returns the owner's files, newest first.
func ListRecentFiles(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	files, err := store.ListUserFiles(userID, limit, offset)
	if err != nil {
		log.Printf("Error listing files for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}
	total, err := store.CountUserFiles(userID)
	if err != nil {
		log.Printf("Error counting files for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files":  fileViews(files),
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetOwnerFile returns one file with its toggles and request counters.
func GetOwnerFile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	file, exists := store.GetFile(c.Param("fileId"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if file.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	counts, err := store.CountRequests(file.ID)
	if err != nil {
		log.Printf("Error counting requests for file %s: %v", file.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load file"})
		return
	}

	view := fileView(file)
	view["requests"] = counts.Requests
	view["pending_requests"] = counts.PendingRequests
	c.JSON(http.StatusOK, view)
}

// ListRequestsForFile returns the access requests on one of the owner's files.
func ListRequestsForFile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	list, err := requests.ListForFile(userID, c.Param("fileId"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	views := make([]gin.H, 0, len(list))
	for _, r := range list {
		views = append(views, gin.H{
			"request_id":  r.RequestID,
			"status":      r.Status,
			"reason":      r.Reason,
			"created_at":  r.CreatedAt,
			"approved_at": r.ApprovedAt,
			"rejected_at": r.RejectedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"requests": views})
}

type fileFlagsRequest struct {
	IsInvalidated   *bool `json:"is_invalidated"`
	BlocksDownloads *bool `json:"blocks_downloads"`
	BlocksRequests  *bool `json:"blocks_requests"`
}

// UpdateFileFlags toggles invalidation and the block switches. Absent fields
// are left untouched.
func UpdateFileFlags(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var body fileFlagsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if body.IsInvalidated == nil && body.BlocksDownloads == nil && body.BlocksRequests == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no flags provided"})
		return
	}

	file, exists := store.GetFile(c.Param("fileId"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if file.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	// Expiry is terminal; nothing about a dead share may change.
	if file.Expired(time.Now()) {
		c.JSON(http.StatusGone, gin.H{"error": "file expired"})
		return
	}

	// Invalidation is one-way.
	if body.IsInvalidated != nil && !*body.IsInvalidated && file.IsInvalidated {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalidation cannot be undone"})
		return
	}

	updated, exists := store.UpdateFileFlags(file.ID, body.IsInvalidated, body.BlocksDownloads, body.BlocksRequests)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.JSON(http.StatusOK, fileView(updated))
}

func fileView(f models.File) gin.H {
	return gin.H{
		"file_id":          f.ID,
		"share_id":         f.ShareID,
		"filename":         f.Filename,
		"size":             f.Size,
		"mime_type":        f.MimeType,
		"upload_status":    f.UploadStatus,
		"created_at":       f.CreatedAt,
		"expires_at":       f.ExpiresAt,
		"max_downloads":    f.MaxDownloads,
		"download_count":   f.DownloadCount,
		"is_invalidated":   f.IsInvalidated,
		"blocks_downloads": f.BlocksDownloads,
		"blocks_requests":  f.BlocksRequests,
	}
}

func fileViews(files []models.File) []gin.H {
	views := make([]gin.H, 0, len(files))
	for _, f := range files {
		views = append(views, fileView(f))
	}
	return views
}
