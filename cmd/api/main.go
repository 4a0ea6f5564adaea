package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memeforge/internal/cache"
	"memeforge/internal/config"
	"memeforge/internal/database"
	"memeforge/internal/handlers"
	"memeforge/internal/jobs"
	"memeforge/internal/log"
	"memeforge/internal/server"
	"memeforge/internal/storage"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := log.New(cfg.Environment, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		// Non-fatal: the bucket may be provisioned out of band.
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	handlerSet := handlers.NewHandlerSet(logger, dbPool, redisClient, objectStore, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(redisClient, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	cancelJobs := scheduler.Stop()
	cancelJobs()

	logger.Info().Msg("server exited cleanly")
	return nil
}
