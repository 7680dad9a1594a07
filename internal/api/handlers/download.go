package handlers

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/SecurePass-Share/Transfer-Service/internal/services"
	"github.com/gin-gonic/gin"
)

// DownloadCiphertext streams the encrypted bytes to an approved requester.
// Each successful response consumes one download slot.
func DownloadCiphertext(c *gin.Context) {
	requestID := c.Param("requestId")

	body, file, err := escrow.OpenCiphertext(requestID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer body.Close()

	if err := services.PublishEvent("downloads.completed", gin.H{
		"request_id": requestID,
		"file_id":    file.ID,
	}); err != nil {
		log.Printf("[NATS] downloads.completed publish failed: %v", err)
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", contentDisposition(file.Filename))
	c.DataFromReader(http.StatusOK, file.Size, "application/octet-stream", body, nil)
}

// ReleaseDecryptKey hands out the escrowed key for an approved request.
// Does not consume a download slot and may be repeated while access holds.
func ReleaseDecryptKey(c *gin.Context) {
	key, err := escrow.ReleaseKey(c.Param("requestId"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"decrypt_key": key})
}

// contentDisposition builds an RFC 6266 header with an ASCII fallback and a
// UTF-8 extended parameter for non-ASCII names.
func contentDisposition(filename string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, filename)

	if fallback == filename {
		return `attachment; filename="` + fallback + `"`
	}
	return `attachment; filename="` + fallback + `"; filename*=UTF-8''` + url.PathEscape(filename)
}
