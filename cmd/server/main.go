package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kafkasder-git/starter-function-sub002/internal/config"
	"github.com/kafkasder-git/starter-function-sub002/internal/core"
	"github.com/kafkasder-git/starter-function-sub002/internal/logging"
	"github.com/kafkasder-git/starter-function-sub002/internal/store"
	"github.com/kafkasder-git/starter-function-sub002/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"uploads_per_minute", cfg.Import.UploadsPerMinute,
	)

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.EnsureSchema {
		if err := store.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
	}

	service := core.NewService(core.NewRegistry(), store.NewRunStore(pool), core.NewServiceConfig(cfg.Import), logger)
	service.Register(core.PersonTarget(pool, core.ImportOptions(cfg.Import), cfg.Import.MaxRecords, logger))

	for _, t := range service.Targets() {
		logger.Debug("target registered", "target", t.Key, "fields", len(t.Fields))
	}

	server := web.NewServer(service, cfg, pool)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRetentionScheduler(jobCtx, core.NewRetentionConfig(cfg.Retention))

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			logger.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				logger.Warn("imports did not complete in time, cancelling", "error", err)
				service.CancelAll()
			} else {
				logger.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		logger.Info("server stopped", "error", err)
	}
}
