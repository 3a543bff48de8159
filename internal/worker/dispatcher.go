package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/basegraphhq/turnengine/internal/queue"
	"github.com/basegraphhq/turnengine/internal/store"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// ProgressPublisher forwards a progress task to whatever is holding the session's SSE
// connection; narrow so the worker doesn't need to know about gin or http.ResponseWriter.
type ProgressPublisher interface {
	Publish(sessionID string, task queue.Task)
}

// TurnIndexer is satisfied by *store.TurnStore; narrowed for the same testability
// reason as engine.turnIndexer.
type TurnIndexer interface {
	ReindexTurn(ctx context.Context, rec store.TurnRecord) error
}

// NewDispatcher builds the Processor the Worker calls per task, routing by TaskType.
// An unrecognized TaskType is a hard error rather than a silent skip — a stream should
// never carry a task kind this binary doesn't know about.
func NewDispatcher(publisher ProgressPublisher, indexer TurnIndexer) Processor {
	return func(ctx context.Context, task queue.Task) error {
		switch task.TaskType {
		case queue.TaskTypeTurnProgress:
			publisher.Publish(task.SessionID, task)
			return nil
		case queue.TaskTypeArchiveRetry:
			return indexer.ReindexTurn(ctx, store.TurnRecord{
				TurnID:      task.TurnID,
				SessionID:   task.SessionID,
				Status:      turn.Status(task.Status),
				ArchivePath: task.ArchivePath,
				SavedAt:     time.Now(),
			})
		default:
			return fmt.Errorf("unknown task type: %s", task.TaskType)
		}
	}
}
