package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/basegraphhq/turnengine/internal/queue"
)

type fakeConsumer struct {
	batches  [][]queue.Message
	batchIdx int
	acked    []string
	requeued []string
	dlqed    []string
}

func (f *fakeConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if f.batchIdx >= len(f.batches) {
		return nil, nil
	}
	b := f.batches[f.batchIdx]
	f.batchIdx++
	return b, nil
}

func (f *fakeConsumer) Ack(ctx context.Context, msg queue.Message) error {
	f.acked = append(f.acked, msg.ID)
	return nil
}

func (f *fakeConsumer) Requeue(ctx context.Context, msg queue.Message, errMsg string) error {
	f.requeued = append(f.requeued, msg.ID)
	return nil
}

func (f *fakeConsumer) SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error {
	f.dlqed = append(f.dlqed, msg.ID)
	return nil
}

func TestWorkerAcksSuccessfullyProcessedTask(t *testing.T) {
	consumer := &fakeConsumer{batches: [][]queue.Message{
		{{ID: "1-1", Task: queue.Task{TaskType: queue.TaskTypeTurnProgress, TurnID: "t1"}}},
	}}
	var processed []string
	w := New(consumer, func(ctx context.Context, task queue.Task) error {
		processed = append(processed, task.TurnID)
		return nil
	}, Config{MaxAttempts: 3})

	if err := w.processOneBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(processed) != 1 || processed[0] != "t1" {
		t.Fatalf("expected task to be processed, got %v", processed)
	}
	if len(consumer.acked) != 1 {
		t.Fatalf("expected message acked, got %v", consumer.acked)
	}
}

func TestWorkerRequeuesBelowMaxAttempts(t *testing.T) {
	consumer := &fakeConsumer{batches: [][]queue.Message{
		{{ID: "1-1", Task: queue.Task{TaskType: queue.TaskTypeArchiveRetry, Attempt: 1}}},
	}}
	w := New(consumer, func(ctx context.Context, task queue.Task) error {
		return errors.New("db unavailable")
	}, Config{MaxAttempts: 3})

	if err := w.processOneBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(consumer.requeued) != 1 {
		t.Fatalf("expected requeue, got acked=%v requeued=%v dlq=%v", consumer.acked, consumer.requeued, consumer.dlqed)
	}
}

func TestWorkerSendsToDLQAtMaxAttempts(t *testing.T) {
	consumer := &fakeConsumer{batches: [][]queue.Message{
		{{ID: "1-1", Task: queue.Task{TaskType: queue.TaskTypeArchiveRetry, Attempt: 3}}},
	}}
	w := New(consumer, func(ctx context.Context, task queue.Task) error {
		return errors.New("db unavailable")
	}, Config{MaxAttempts: 3})

	if err := w.processOneBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(consumer.dlqed) != 1 {
		t.Fatalf("expected dlq, got acked=%v requeued=%v dlq=%v", consumer.acked, consumer.requeued, consumer.dlqed)
	}
}

func TestWorkerRecoversFromPanicInProcessor(t *testing.T) {
	consumer := &fakeConsumer{batches: [][]queue.Message{
		{{ID: "1-1", Task: queue.Task{TaskType: queue.TaskTypeTurnProgress, Attempt: 1}}},
	}}
	w := New(consumer, func(ctx context.Context, task queue.Task) error {
		panic("boom")
	}, Config{MaxAttempts: 3})

	if err := w.processOneBatch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(consumer.requeued) != 1 {
		t.Fatalf("expected panic to be recovered and requeued, got %v", consumer.requeued)
	}
}
