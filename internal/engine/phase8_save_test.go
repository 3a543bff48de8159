package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/basegraphhq/turnengine/internal/store"
	"github.com/basegraphhq/turnengine/internal/turn"
)

type fakeTurnIndexer struct {
	saved *turn.Document
	err   error
}

func (f *fakeTurnIndexer) SaveTurn(ctx context.Context, doc *turn.Document) error {
	f.saved = doc
	return f.err
}

func TestSaverArchivesAndIndexesApprovedTurn(t *testing.T) {
	root := t.TempDir()
	archive := store.NewArchive(root)
	indexer := &fakeTurnIndexer{}
	save := NewSaver(archive, indexer)

	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.CommitSection0(turn.Section0{ResolvedQuery: "cheapest laptop"})
	doc.CommitSynthesis("The cheapest laptop found is $449.", nil)
	doc.AppendValidationAttempt(turn.ValidationAttempt{Decision: turn.DecisionApprove, Confidence: 0.95})

	if err := save(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != turn.StatusApproved {
		t.Fatalf("expected approved status, got %s", doc.Status)
	}
	if doc.S8.ArchivePath != filepath.Join(root, "t1") {
		t.Fatalf("unexpected archive path: %s", doc.S8.ArchivePath)
	}
	if _, err := os.Stat(filepath.Join(doc.S8.ArchivePath, "context.md")); err != nil {
		t.Fatalf("expected context.md on disk: %v", err)
	}
	if indexer.saved == nil || indexer.saved.TurnID != "t1" {
		t.Fatal("expected the turn to be handed to the indexer")
	}
}

func TestSaverMarksPartialWhenLastValidationIsNotApproved(t *testing.T) {
	root := t.TempDir()
	archive := store.NewArchive(root)
	indexer := &fakeTurnIndexer{}
	save := NewSaver(archive, indexer)

	doc := turn.New("t2", "s1", turn.ModeChat)
	doc.AppendValidationAttempt(turn.ValidationAttempt{Decision: turn.DecisionRetry, Confidence: 0.4})

	if err := save(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Status != turn.StatusPartial {
		t.Fatalf("expected partial status, got %s", doc.Status)
	}
}
