package engine

import (
	"context"
	"testing"

	"github.com/basegraphhq/turnengine/internal/turn"
)

type fakeInvoker struct {
	calls []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (Result, error) {
	f.calls = append(f.calls, family)
	return Result{Status: "ok"}, nil
}

func TestModeGateRejectsFamilyNotAllowlisted(t *testing.T) {
	inv := &fakeInvoker{}
	gate := NewModeGate(inv, []string{"web_fetch"}, []string{"web_fetch", "git"})

	_, err := gate.Invoke(context.Background(), turn.ModeChat, "git", nil)
	if err == nil {
		t.Fatal("expected error for family not allowed in chat mode")
	}
	if len(inv.calls) != 0 {
		t.Fatalf("expected underlying invoker never called, got %v", inv.calls)
	}
}

func TestModeGateAllowsListedFamily(t *testing.T) {
	inv := &fakeInvoker{}
	gate := NewModeGate(inv, []string{"web_fetch"}, []string{"web_fetch", "git"})

	_, err := gate.Invoke(context.Background(), turn.ModeCode, "git", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.calls) != 1 {
		t.Fatalf("expected underlying invoker called once, got %v", inv.calls)
	}
}

func TestModeGateEmptyAllowlistPassesThrough(t *testing.T) {
	inv := &fakeInvoker{}
	gate := NewModeGate(inv, nil, nil)

	_, err := gate.Invoke(context.Background(), turn.ModeChat, "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
