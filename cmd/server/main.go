package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SecurePass-Share/Transfer-Service/cmd/middleware"
	"github.com/SecurePass-Share/Transfer-Service/internal/api"
	"github.com/SecurePass-Share/Transfer-Service/internal/api/handlers"
	"github.com/SecurePass-Share/Transfer-Service/internal/configuration"
	natsclient "github.com/SecurePass-Share/Transfer-Service/internal/nats"
	"github.com/SecurePass-Share/Transfer-Service/internal/reaper"
	"github.com/SecurePass-Share/Transfer-Service/internal/services"
	"github.com/SecurePass-Share/Transfer-Service/internal/transfer"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := configuration.Load()

	if err := services.InitializePostgres(cfg.Database.ConnectionString()); err != nil {
		log.Fatalf("Failed to initialize PostgreSQL: %v", err)
	}

	if err := services.InitializeMinio(
		cfg.MinIO.Endpoint,
		cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey,
		cfg.MinIO.BucketName,
		cfg.MinIO.UseSSL,
	); err != nil {
		log.Fatalf("Failed to initialize MinIO: %v", err)
	}

	if _, _, err := services.ConnectNATS(cfg.NATSURL); err != nil {
		log.Printf("Warning: NATS unavailable, events disabled: %v", err)
	}

	if err := middleware.InitAuth(cfg.KeycloakUrl); err != nil {
		log.Fatalf("Failed to initialize OIDC verifier: %v", err)
	}

	store := services.GetStore()
	objects := services.GetMinioService()

	policy := transfer.Policy{
		MaxFileSize:     cfg.Transfer.MaxFileSize,
		MinChunkSize:    cfg.Transfer.MinChunkSize,
		MaxChunkSize:    cfg.Transfer.MaxChunkSize,
		MinExpiresHours: cfg.Transfer.MinExpiresHours,
		MaxExpiresHours: cfg.Transfer.MaxExpiresHours,
		MaxDownloadsCap: cfg.Transfer.MaxDownloadsCap,
		SessionTTL:      cfg.Transfer.SessionTTL,
	}

	handlers.Init(
		transfer.NewUploader(store, objects, policy),
		transfer.NewRequestMachine(store),
		transfer.NewEscrow(store, objects),
		store,
		cfg.Transfer.IPHashSalt,
	)

	// Event subscriptions (core NATS; JetStream publish side is separate)
	if client, err := natsclient.NewClient(cfg.NATSURL); err != nil {
		log.Printf("Warning: NATS subscriptions disabled: %v", err)
	} else if err := client.SubscribeAll(natsclient.Routes()); err != nil {
		log.Printf("Warning: failed to subscribe NATS routes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.New(store, objects, cfg.Transfer.ReaperInterval).Run(ctx)

	r := gin.Default()
	api.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
}
