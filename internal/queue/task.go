// Package queue carries two kinds of async work off the synchronous turn path:
// progress events for the Gateway's SSE fan-out, and archive-retry jobs for a Phase 8
// save that failed inline. Built on Redis streams, adapted from the teacher's
// queue.Task/queue.Message shape, generalized from issue-event tasks to turn tasks.
package queue

import "fmt"

type TaskType string

const (
	// TaskTypeTurnProgress carries one phase checkpoint for SSE subscribers of a session.
	TaskTypeTurnProgress TaskType = "turn_progress"
	// TaskTypeArchiveRetry carries a turn whose synchronous Phase 8 save failed and
	// needs an out-of-band retry.
	TaskTypeArchiveRetry TaskType = "archive_retry"
)

// Task is what a producer enqueues; Message (consumer.go) is what comes back out,
// carrying the stream entry's ID and redelivery bookkeeping on top.
type Task struct {
	TaskType    TaskType
	TurnID      string
	SessionID   string
	Phase       string
	Status      string // progress: phase status ("started", "approved", "revised", ...)
	ArchivePath string // archive_retry: where Phase 8 already wrote the turn directory
	TraceID     string
	Attempt     int
}

func ProgressStreamName(sessionID string) string {
	return fmt.Sprintf("turn-progress:session-%s", sessionID)
}
