package workflow

import (
	"testing"

	"github.com/basegraphhq/turnengine/internal/turn"
)

func newTestBundle(t *testing.T, id string, trigger string, priority int) *turn.WorkflowBundle {
	t.Helper()
	b, err := turn.NewWorkflowBundle(id, []turn.WorkflowStep{
		{ToolFamily: "web_fetch", OnFailure: turn.FailureAbort},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Triggers = []string{trigger}
	b.Priority = priority
	return b
}

func TestRegistryMatchByTrigger(t *testing.T) {
	r := NewRegistry()
	bundle := newTestBundle(t, "price-check", "check price", 0)
	if err := r.Register(bundle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches := r.Match("Check Price")
	if len(matches) != 1 || matches[0].ID != "price-check" {
		t.Fatalf("expected case-insensitive match on price-check, got %+v", matches)
	}

	if len(r.Match("unrelated action")) != 0 {
		t.Fatal("expected no match for unrelated action")
	}
}

func TestRegistryMatchOrdersByPriority(t *testing.T) {
	r := NewRegistry()
	low := newTestBundle(t, "low", "shared-trigger", 1)
	high := newTestBundle(t, "high", "shared-trigger", 5)
	_ = r.Register(low)
	_ = r.Register(high)

	matches := r.Match("shared-trigger")
	if len(matches) != 2 || matches[0].ID != "high" {
		t.Fatalf("expected high-priority bundle first, got %+v", matches)
	}
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	bundle := newTestBundle(t, "dup", "trigger", 0)
	if err := r.Register(bundle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(bundle); err == nil {
		t.Fatal("expected error registering duplicate bundle id")
	}
}

func TestLoadDirToleratesMissingDirectory(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadDir("/nonexistent/workflow/dir"); err != nil {
		t.Fatalf("expected no error for missing directory, got %v", err)
	}
}
