package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"classroom/internal/activity"
	"classroom/internal/config"
	"classroom/internal/logging"
	"classroom/internal/queue"
	"classroom/internal/store"
)

// Worker consumes activity events from the queue and appends them to the
// per-teacher activity feed.
func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.Production())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.QueueBackend == "memory" || cfg.StoreBackend == "memory" {
		log.Fatal("worker needs QUEUE_BACKEND=redis and STORE_BACKEND=postgres; in-memory backends are consumed by the api process")
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Warn("redis not reachable yet, consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	recorder := activity.NewRecorder(activity.NewRepository(db.Client), log.Named("activity"))

	log.Info("worker started, waiting for messages", zap.String("queue", cfg.QueueKey))
	if err := recorder.Run(ctx, q); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker stopped with error", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}
