package worker

import (
	"context"
	"log/slog"

	"github.com/basegraphhq/turnengine/internal/queue"
)

// RedisProgressPublisher implements ProgressPublisher by re-enqueuing a progress task
// onto the session's own stream. This decouples the Orchestrator's hot path, which only
// ever writes to one shared task stream, from the Gateway's SSE readers, which each tail
// a single session's stream — any worker replica can pick up the fan-out regardless of
// which Gateway replica is holding that session's connection.
type RedisProgressPublisher struct {
	producer queue.Producer
}

func NewRedisProgressPublisher(producer queue.Producer) *RedisProgressPublisher {
	return &RedisProgressPublisher{producer: producer}
}

func (p *RedisProgressPublisher) Publish(sessionID string, task queue.Task) {
	stream := queue.ProgressStreamName(sessionID)
	if err := p.producer.Enqueue(context.Background(), stream, task); err != nil {
		slog.Error("failed to publish progress checkpoint", "error", err, "session_id", sessionID)
	}
}
