package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/basegraphhq/turnengine/internal/obslog"
)

// Producer is satisfied by *RedisProducer; narrowed so callers (the orchestrator's
// progress checkpoints, the worker's progress publisher) depend only on Enqueue/Close.
type Producer interface {
	Enqueue(ctx context.Context, stream string, task Task) error
	Close() error
}

type RedisProducer struct {
	client *redis.Client
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

func (p *RedisProducer) Enqueue(ctx context.Context, stream string, task Task) error {
	ctx = obslog.WithFields(ctx, obslog.Fields{
		TurnID:    obslog.Ptr(task.TurnID),
		SessionID: obslog.Ptr(task.SessionID),
		Component: "turnengine.queue.producer",
	})

	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	values := map[string]any{
		"task_type":    string(task.TaskType),
		"turn_id":      task.TurnID,
		"session_id":   task.SessionID,
		"phase":        task.Phase,
		"status":       task.Status,
		"archive_path": task.ArchivePath,
		"trace_id":     task.TraceID,
		"attempt":      attempt,
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("enqueue task (stream=%s): %w", stream, err)
	}

	slog.DebugContext(ctx, "enqueued task", "task_type", task.TaskType, "stream", stream, "attempt", attempt)
	return nil
}

func (p *RedisProducer) Close() error {
	return p.client.Close()
}
