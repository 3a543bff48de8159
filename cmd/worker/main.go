package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/core/db"
	"github.com/basegraphhq/turnengine/internal/obslog"
	"github.com/basegraphhq/turnengine/internal/queue"
	"github.com/basegraphhq/turnengine/internal/store"
	"github.com/basegraphhq/turnengine/internal/worker"
)

const (
	tasksStream   = "turnengine:tasks"
	consumerGroup = "turnengine-workers"
	dlqStream     = "turnengine:tasks:dlq"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()

	telemetry, err := obslog.SetupOTel(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	obslog.Setup(cfg)

	slog.InfoContext(ctx, "turnengine worker starting", "env", cfg.Env)

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	consumerName := os.Getenv("HOSTNAME")
	if consumerName == "" {
		consumerName = "worker-1"
	}

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       tasksStream,
		Group:        consumerGroup,
		Consumer:     consumerName,
		DLQStream:    dlqStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	producer := queue.NewRedisProducer(redisClient)
	defer producer.Close()

	turnStore := store.NewTurnStore(database)

	dispatcher := worker.NewDispatcher(worker.NewRedisProgressPublisher(producer), turnStore)
	w := worker.New(consumer, dispatcher, worker.Config{MaxAttempts: 3})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	slog.InfoContext(ctx, "worker running", "consumer", consumerName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.InfoContext(ctx, "shutdown signal received")
	case err := <-done:
		if err != nil {
			slog.ErrorContext(ctx, "worker loop exited with error", "error", err)
		}
	}

	w.Stop()
	cancel()

	if telemetry != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
		defer shutdownCancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "shutdown complete")
}
