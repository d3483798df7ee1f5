package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Zhihong0321/solar-analysis-app/internal/config"
	"github.com/Zhihong0321/solar-analysis-app/internal/server"
)

const (
	tileCleanupInterval = 1 * time.Hour
	tileMaxAge          = 24 * time.Hour
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
	}

	log.Infof("Starting Solar Analysis Proxy on port %s", cfg.Port)
	log.Infof("Environment: %s", cfg.Environment)
	if cfg.GCSBucket != "" {
		log.Infof("Tile cache: GCS bucket %s", cfg.GCSBucket)
	} else {
		log.Infof("Tile cache: local dir %s", cfg.TileCacheDir)
	}

	// Create server
	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer srv.Close()

	// Evict stale cached tiles in the background
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go srv.CleanupLoop(cleanupCtx, tileCleanupInterval, tileMaxAge)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // raster decoding of large tiles
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown error: %v", err)
	}

	log.Info("Server stopped")
}
