package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/ksuid"

	"memeforge/internal/cache"
	"memeforge/internal/config"
	"memeforge/internal/database"
	"memeforge/internal/log"
	"memeforge/internal/queue"
	"memeforge/internal/repository"
	"memeforge/internal/service"
	"memeforge/internal/storage"
	"memeforge/internal/tasks"
)

const (
	consumerGroup = "memeforge-workers"
	claimInterval = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "worker")

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	memeRepo := repository.NewMemeRepository(dbPool)
	userRepo := repository.NewUserRepository(dbPool)
	memes := service.NewMemeService(memeRepo, userRepo, objectStore, redisClient, cfg, logger)

	processor := tasks.NewProcessor(memes, memeRepo, objectStore, logger)
	consumer := queue.NewConsumer(
		redisClient,
		service.TaskStream,
		consumerGroup,
		consumerName(),
		claimInterval,
		logger,
		processor,
	)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-runCtx.Done()
	logger.Info().Msg("shutdown signal received")
	time.Sleep(500 * time.Millisecond)
}

func consumerName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-" + ksuid.New().String()
}
