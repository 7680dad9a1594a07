package api

import (
	"github.com/SecurePass-Share/Transfer-Service/cmd/middleware"
	"github.com/SecurePass-Share/Transfer-Service/internal/api/handlers"
	"github.com/gin-gonic/gin"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, PATCH, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

func RegisterRoutes(r *gin.Engine) {
	// Enable CORS for preflight requests
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)

		// Anonymous share surface
		api.GET("/shares/:shareId", handlers.GetShare)
		api.POST("/requests", handlers.CreateAccessRequest)
		api.GET("/requests/:requestId/status", handlers.RequestStatus)

		// Anonymous gated release; the request id is the capability
		api.GET("/download/:requestId/file", handlers.DownloadCiphertext)
		api.POST("/download/:requestId/decrypt-key", handlers.ReleaseDecryptKey)

		// Chunk staging; the session key is the capability
		api.POST("/upload/chunk", handlers.UploadChunk)

		// Owner surface
		auth := api.Group("", middleware.RequireAuth())
		{
			auth.POST("/upload/initiate", handlers.InitiateUpload)
			auth.POST("/upload/complete", handlers.CompleteUpload)
			auth.POST("/upload/cancel", handlers.CancelUpload)

			auth.GET("/files", handlers.ListRecentFiles)
			auth.GET("/files/:fileId", handlers.GetOwnerFile)
			auth.GET("/files/:fileId/requests", handlers.ListRequestsForFile)
			auth.PATCH("/files/:fileId", handlers.UpdateFileFlags)

			auth.POST("/requests/:requestId/approve", handlers.ApproveRequest)
			auth.POST("/requests/:requestId/reject", handlers.RejectRequest)
		}
	}
}
