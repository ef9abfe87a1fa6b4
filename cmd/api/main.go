package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"safeform/internal/config"
	"safeform/internal/database"
	"safeform/internal/logger"
	"safeform/internal/models"
	"safeform/internal/server"
	"safeform/internal/storage"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Logging); err != nil {
		logger.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db := database.New(cfg.Database.DSN)
	if err := db.RunMigrations(); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}

	directory, err := models.NewDB(cfg.Database.DSN)
	if err != nil {
		logger.Fatalf("failed to open directory: %v", err)
	}

	var store storage.AttachmentStore
	s3Service, err := storage.NewS3Service(context.Background(), cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrStorageDisabled):
		logger.Warn("attachment storage disabled, file uploads will be rejected")
	case err != nil:
		logger.Fatalf("failed to initialize S3 service: %v", err)
	default:
		store = s3Service
		logger.Info("attachment storage ready",
			zap.String("bucket", cfg.Storage.Bucket),
			zap.Bool("encrypted", s3Service.Encrypted()))
	}

	httpServer := server.NewServer(cfg, db, directory, store)

	go func() {
		logger.Infof("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := directory.Close(); err != nil {
		logger.Warn("failed to close directory", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
