package engine

import (
	"context"
	"testing"

	"github.com/basegraphhq/turnengine/internal/turn"
)

func TestValidatorAppendsAttemptAndReturnsOutcome(t *testing.T) {
	client := &queueLLMClient{payloads: []any{validationChecksOutput{
		ClaimsSupported: true,
		NoHallucination: true,
		QueryAddressed:  true,
		CoherentFormat:  true,
		Confidence:      0.9,
	}}}
	loader := newTestLoader(t, "phase7_validate")
	validate := NewValidator(client, loader, defaultThresholds())

	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.CommitSection0(turn.Section0{ResolvedQuery: "cheapest laptop"})
	doc.CommitSynthesis("The cheapest laptop found is $449.", nil)

	outcome, err := validate(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Decision != turn.DecisionApprove {
		t.Fatalf("expected APPROVE, got %s", outcome.Decision)
	}
	if len(doc.S7.Attempts) != 1 {
		t.Fatalf("expected one appended attempt, got %d", len(doc.S7.Attempts))
	}
	if doc.S7.Attempts[0].Decision != turn.DecisionApprove {
		t.Fatalf("unexpected attempt decision: %s", doc.S7.Attempts[0].Decision)
	}
}

func TestValidatorAppendsSecondAttemptWithoutOverwriting(t *testing.T) {
	client := &queueLLMClient{payloads: []any{
		validationChecksOutput{QueryAddressed: false, Confidence: 0.4},
		validationChecksOutput{ClaimsSupported: true, NoHallucination: true, QueryAddressed: true, CoherentFormat: true, Confidence: 0.9},
	}}
	loader := newTestLoader(t, "phase7_validate")
	validate := NewValidator(client, loader, defaultThresholds())

	doc := turn.New("t1", "s1", turn.ModeChat)
	if _, err := validate(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := validate(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.S7.Attempts) != 2 {
		t.Fatalf("expected both attempts retained, got %d", len(doc.S7.Attempts))
	}
}
