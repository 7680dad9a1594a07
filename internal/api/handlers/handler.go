package handlers

import (
	"errors"
	"net/http"

	"github.com/SecurePass-Share/Transfer-Service/internal/services"
	"github.com/SecurePass-Share/Transfer-Service/internal/storage"
	"github.com/SecurePass-Share/Transfer-Service/internal/transfer"
	"github.com/gin-gonic/gin"
)

var (
	uploader *transfer.Uploader
	requests *transfer.RequestMachine
	escrow   *transfer.Escrow
	store    storage.Store
	ipSalt   string
)

// Init wires the handler package to the transfer services. Call once at startup.
func Init(u *transfer.Uploader, m *transfer.RequestMachine, e *transfer.Escrow, s storage.Store, salt string) {
	uploader = u
	requests = m
	escrow = e
	store = s
	ipSalt = salt
}

func HealthCheck(c *gin.Context) {
	health := gin.H{"status": "ok"}
	if err := services.CheckDatabase(); err != nil {
		health["status"] = "degraded"
		health["database"] = err.Error()
	}
	if m := services.GetMinioService(); m != nil {
		if err := m.CheckConnection(); err != nil {
			health["status"] = "degraded"
			health["storage"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, health)
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

// abortWithError translates transfer errors into HTTP responses.
func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, transfer.ErrValidation),
		errors.Is(err, transfer.ErrIndexOutOfRange),
		errors.Is(err, transfer.ErrSizeMismatch),
		errors.Is(err, transfer.ErrIncompleteUpload):
		return http.StatusBadRequest
	case errors.Is(err, transfer.ErrNotFound),
		errors.Is(err, transfer.ErrInvalidSession),
		errors.Is(err, transfer.ErrFileNotReady):
		return http.StatusNotFound
	case errors.Is(err, transfer.ErrNotOwner),
		errors.Is(err, transfer.ErrNotApproved):
		return http.StatusForbidden
	case errors.Is(err, transfer.ErrChunkConflict),
		errors.Is(err, transfer.ErrAlreadyApproved):
		return http.StatusConflict
	case errors.Is(err, transfer.ErrExpired),
		errors.Is(err, transfer.ErrInvalidated),
		errors.Is(err, transfer.ErrLimitReached),
		errors.Is(err, transfer.ErrDownloadsBlocked),
		errors.Is(err, transfer.ErrRequestsBlocked),
		errors.Is(err, transfer.ErrFileGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// requesterHash derives the anonymous requester identity from the client IP.
func requesterHash(c *gin.Context) string {
	return transfer.HashIP(c.ClientIP(), ipSalt)
}
