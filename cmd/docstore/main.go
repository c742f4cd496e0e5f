// Package main provides the entry point for the document store service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/devrev/docstore/internal/config"
	"github.com/devrev/docstore/internal/logger"
	"github.com/devrev/docstore/internal/metrics"
	"github.com/devrev/docstore/internal/seed"
	"github.com/devrev/docstore/internal/server"
	"github.com/devrev/docstore/internal/service"
	"github.com/devrev/docstore/internal/store"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Logging)
	if err != nil {
		log, _ = zap.NewProduction()
		log.Warn("failed to build configured logger, using defaults", zap.Error(err))
	}
	defer log.Sync()

	log.Info("starting document store",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("mode", cfg.Store.Mode),
		zap.String("blob_backend", cfg.Blob.Backend),
	)

	// Initialize metrics
	m := metrics.NewMetrics()
	m.SetHealthStatus(true)

	// Start metrics server if enabled
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		log.Info("metrics server started",
			zap.Int("port", cfg.Metrics.Port),
			zap.String("path", cfg.Metrics.Path),
		)
	}

	// Initialize durable storage. Read-only mode bypasses it entirely.
	var objects store.ObjectStore
	var snapshots *store.SnapshotStore
	if !cfg.ReadOnly() {
		objects, err = newObjectStore(cfg, log)
		if err != nil {
			log.Fatal("failed to initialize durable storage", zap.Error(err))
		}
		defer objects.Close()
		snapshots = store.NewSnapshotStore(objects, cfg.Store.Namespace, m, log)
		log.Info("durable storage initialized", zap.String("backend", cfg.Blob.Backend))
	} else {
		log.Info("read-only mode, durable storage disabled")
	}

	// Initialize seed template loader
	seeds := seed.NewLoader(cfg.Store.SeedPath, log)
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if cfg.Store.WatchSeed {
		go func() {
			if err := seeds.Watch(watchCtx); err != nil {
				log.Error("seed watcher stopped", zap.Error(err))
			}
		}()
		log.Info("watching seed template", zap.String("path", cfg.Store.SeedPath))
	}

	// Initialize services
	flusher := service.NewFlushService(snapshots, cfg.Store.FlushDelay, clock.New(), m, log)
	cache := service.NewCacheService(snapshots, seeds, cfg.ReadOnly(), m, log)
	documents := service.NewDocumentService(cache, flusher, log)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, documents, objects, m, log)
	httpServer.SetupRoutes()

	// Start HTTP server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	log.Info("HTTP server started", zap.Int("port", cfg.Server.Port))

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	log.Info("initiating graceful shutdown")
	m.SetHealthStatus(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests before the final flush so no new mutations
	// land mid-drain.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	// Persist every tenant with a pending debounce timer
	flusher.FlushAll(ctx)

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	log.Info("document store shutdown complete")
}

// newObjectStore builds the configured durable storage backend. Secret
// credentials come from the environment via config.
func newObjectStore(cfg *config.Config, log *zap.Logger) (store.ObjectStore, error) {
	switch cfg.Blob.Backend {
	case config.BackendS3:
		return store.NewS3ObjectStore(
			cfg.Blob.S3.Endpoint,
			cfg.Blob.S3.Region,
			cfg.Blob.S3.Bucket,
			cfg.Blob.S3.AccessKey,
			cfg.Blob.S3.SecretKey,
			cfg.Blob.S3.UseSSL,
			log,
		)
	case config.BackendPostgres:
		return store.NewPostgresObjectStore(
			cfg.Blob.Postgres.Host,
			cfg.Blob.Postgres.Port,
			cfg.Blob.Postgres.Database,
			cfg.Blob.Postgres.User,
			cfg.Blob.Postgres.Password,
			cfg.Blob.Postgres.SSLMode,
			int(cfg.Blob.Postgres.MaxConns),
			int(cfg.Blob.Postgres.MinConns),
			log,
		)
	case config.BackendMemory:
		log.Warn("memory blob backend keeps no data across restarts")
		return store.NewMemoryObjectStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %q", cfg.Blob.Backend)
	}
}
