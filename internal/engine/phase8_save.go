package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/basegraphhq/turnengine/internal/store"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// turnIndexer is satisfied by *store.TurnStore; kept narrow so Phase 8 can be tested
// without a live Postgres pool.
type turnIndexer interface {
	SaveTurn(ctx context.Context, doc *turn.Document) error
}

// NewSaver builds Phase 8's handler: archives the finalized document to disk, indexes
// it in Postgres, and sets §8/Status from the last §7 attempt so a validation-exhausted
// turn is saved as partial rather than silently looking approved.
func NewSaver(archive *store.Archive, turnStore turnIndexer) func(ctx context.Context, doc *turn.Document) error {
	return func(ctx context.Context, doc *turn.Document) error {
		path, err := archive.Write(doc)
		if err != nil {
			return fmt.Errorf("phase 8 archive write: %w", err)
		}

		status := turn.StatusFailed
		if last := doc.LastValidation(); last != nil {
			switch last.Decision {
			case turn.DecisionApprove:
				status = turn.StatusApproved
			default:
				status = turn.StatusPartial
			}
		}

		doc.CommitSave(turn.Section8{
			TurnID:      doc.TurnID,
			SavedAt:     time.Now(),
			ArchivePath: path,
			IndexKeys:   []string{doc.SessionID, string(doc.S0.Purpose)},
		}, status)

		if err := turnStore.SaveTurn(ctx, doc); err != nil {
			return fmt.Errorf("phase 8 index save: %w", err)
		}
		return nil
	}
}
