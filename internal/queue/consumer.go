package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/basegraphhq/turnengine/internal/obslog"
)

type ConsumerConfig struct {
	Stream       string
	Group        string
	Consumer     string
	DLQStream    string
	BatchSize    int64
	Block        time.Duration
	MaxAttempts  int
	RequeueDelay time.Duration
}

// Message is a consumed task plus its stream entry ID and original redis.XMessage, for
// Ack/Requeue/SendDLQ bookkeeping.
type Message struct {
	ID   string
	Task Task
	Raw  redis.XMessage
}

type Consumer interface {
	Read(ctx context.Context) ([]Message, error)
	Ack(ctx context.Context, msg Message) error
	Requeue(ctx context.Context, msg Message, errMsg string) error
	SendDLQ(ctx context.Context, msg Message, errMsg string) error
}

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	c := &RedisConsumer{client: client, cfg: cfg}
	if err := c.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}
	return c, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = obslog.WithFields(ctx, obslog.Fields{Component: "turnengine.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg, parseErr := parseMessage(raw)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse task message", "error", parseErr, "raw_message_id", raw.ID)
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed task for requeue: %w", err)
	}

	attempt := msg.Task.Attempt + 1
	values := taskValues(msg.Task, attempt)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		time.Sleep(c.cfg.RequeueDelay)
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "task requeued for retry", "next_attempt", attempt, "reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed task for dlq: %w", err)
	}

	values := taskValues(msg.Task, msg.Task.Attempt)
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "task sent to dlq", "final_error", errMsg, "dlq_stream", c.cfg.DLQStream)
	return nil
}

func parseMessage(raw redis.XMessage) (Message, error) {
	taskType, err := stringField(raw.Values, "task_type")
	if err != nil {
		return Message{}, err
	}
	turnID, err := stringField(raw.Values, "turn_id")
	if err != nil {
		return Message{}, err
	}

	attempt := 1
	if v, ok := raw.Values["attempt"]; ok {
		n, convErr := strconv.Atoi(fmt.Sprint(v))
		if convErr != nil {
			return Message{}, fmt.Errorf("parsing attempt: %w", convErr)
		}
		attempt = n
	}

	return Message{
		ID: raw.ID,
		Task: Task{
			TaskType:    TaskType(taskType),
			TurnID:      turnID,
			SessionID:   fmt.Sprint(raw.Values["session_id"]),
			Phase:       fmt.Sprint(raw.Values["phase"]),
			Status:      fmt.Sprint(raw.Values["status"]),
			ArchivePath: fmt.Sprint(raw.Values["archive_path"]),
			TraceID:     fmt.Sprint(raw.Values["trace_id"]),
			Attempt:     attempt,
		},
		Raw: raw,
	}, nil
}

func stringField(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func taskValues(t Task, attempt int) map[string]any {
	return map[string]any{
		"task_type":    string(t.TaskType),
		"turn_id":      t.TurnID,
		"session_id":   t.SessionID,
		"phase":        t.Phase,
		"status":       t.Status,
		"archive_path": t.ArchivePath,
		"trace_id":     t.TraceID,
		"attempt":      attempt,
	}
}
