package engine

import (
	"context"
	"testing"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/turn"
)

func TestSynthesizerCommitsDraftAndSourceMap(t *testing.T) {
	client := &queueLLMClient{payloads: []any{synthesisOutput{
		Draft:     "The cheapest laptop found is $449.",
		SourceMap: map[string]string{"449": "c1"},
	}}}
	loader := newTestLoader(t, "synthesis")
	synth := NewSynthesizer(client, loader, config.PhaseBudgets{Section4Tokens: 2000})

	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.CommitSection0(turn.Section0{ResolvedQuery: "cheapest laptop"})
	claim, _ := turn.NewClaim("c1", "price is $449", "tool:price_search", turn.EvidenceTool, 0.9)
	doc.AppendExecution(turn.ExecutionEntry{Command: "search", Claims: []turn.Claim{claim}})

	if err := synth(context.Background(), doc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.S6.Draft == "" {
		t.Fatal("expected a non-empty draft")
	}
	if doc.S6.SourceMap["449"] != "c1" {
		t.Fatalf("expected source map to carry through, got %+v", doc.S6.SourceMap)
	}
}

func TestSynthesizerRejectsEmptyDraft(t *testing.T) {
	client := &queueLLMClient{payloads: []any{synthesisOutput{}}}
	loader := newTestLoader(t, "synthesis")
	synth := NewSynthesizer(client, loader, config.PhaseBudgets{Section4Tokens: 2000})

	doc := turn.New("t1", "s1", turn.ModeChat)
	if err := synth(context.Background(), doc, nil); err == nil {
		t.Fatal("expected error for an empty draft")
	}
}
