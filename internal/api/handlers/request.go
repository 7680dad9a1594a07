package handlers

import (
	"log"
	"net/http"

	"github.com/SecurePass-Share/Transfer-Service/internal/services"
	"github.com/gin-gonic/gin"
)

// RequestStatus reports the requester-facing state of an access request.
// Anonymous; the request id is the capability.
func RequestStatus(c *gin.Context) {
	requestID := c.Param("requestId")

	request, file, decision, err := requests.Status(requestID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := gin.H{
		"request_id":         request.RequestID,
		"status":             request.Status,
		"filename":           file.Filename,
		"download_available": decision.Allowed,
	}
	if !decision.Allowed {
		resp["deny_reason"] = decision.Reason
	}
	c.JSON(http.StatusOK, resp)
}

type approveRequest struct {
	EncryptedKey string `json:"encrypted_key" binding:"required"`
}

// ApproveRequest grants an access request and stores the key material the
// owner re-wrapped for this requester.
func ApproveRequest(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var body approveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	request, err := requests.Approve(userID, c.Param("requestId"), body.EncryptedKey)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := services.PublishEvent("requests.approved", gin.H{
		"request_id": request.RequestID,
		"file_id":    request.FileID,
	}); err != nil {
		log.Printf("[NATS] requests.approved publish failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":  request.RequestID,
		"status":      request.Status,
		"approved_at": request.ApprovedAt,
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectRequest denies an access request. Safe to repeat.
func RejectRequest(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var body rejectRequest
	_ = c.ShouldBindJSON(&body) // body is optional

	request, err := requests.Reject(userID, c.Param("requestId"), body.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := services.PublishEvent("requests.rejected", gin.H{
		"request_id": request.RequestID,
		"file_id":    request.FileID,
	}); err != nil {
		log.Printf("[NATS] requests.rejected publish failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":  request.RequestID,
		"status":      request.Status,
		"rejected_at": request.RejectedAt,
	})
}
