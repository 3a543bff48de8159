package engine

import (
	"context"
	"testing"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/retrieval"
	"github.com/basegraphhq/turnengine/internal/turn"
)

type fakeRetrievalSource struct {
	name     string
	priority retrieval.Priority
	claims   []turn.Claim
	err      error
}

func (f *fakeRetrievalSource) Name() string               { return f.name }
func (f *fakeRetrievalSource) Priority() retrieval.Priority { return f.priority }
func (f *fakeRetrievalSource) Retrieve(ctx context.Context, query, sessionID string) ([]turn.Claim, error) {
	return f.claims, f.err
}

func TestContextRetrieverStagesRecordsFromSources(t *testing.T) {
	claim, _ := turn.NewClaim("c1", "user prefers aisle seats", "memory:c1", turn.EvidenceMemory, 0.95)
	source := &fakeRetrievalSource{name: "forever_memory", priority: retrieval.PriorityForeverMemory, claims: []turn.Claim{claim}}
	retriever := NewContextRetriever([]retrieval.Source{source})

	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.CommitSection0(turn.Section0{ResolvedQuery: "book a flight"})

	if err := retriever(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.S2.Records) != 1 || doc.S2.Records[0].ID != "c1" {
		t.Fatalf("expected staged record from source, got %+v", doc.S2.Records)
	}
	if doc.S2.Committed {
		t.Fatal("expected §2 to remain uncommitted after staging")
	}
}

func TestContextSynthesizerStagesSummaryWithoutCommitting(t *testing.T) {
	client := &queueLLMClient{payloads: []any{contextSynthesisOutput{Summary: "user wants an aisle seat on a morning flight"}}}
	loader := newTestLoader(t, "context_synthesis")
	synth := NewContextSynthesizer(client, loader, config.PhaseBudgets{Section2Tokens: 1000})

	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.SetStagedRecords([]turn.Record{{ID: "c1", Text: "prefers aisle seats"}})

	if err := synth(context.Background(), doc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.S2.Committed {
		t.Fatal("expected §2 to remain uncommitted after a 2.2 pass; only 2.5's approval commits it")
	}
	if doc.S2.StagedSummary == "" {
		t.Fatal("expected a non-empty staged summary")
	}
	if doc.S2.Summary != "" {
		t.Fatal("expected §2.Summary to stay empty until commit")
	}
}

func TestContextValidatorReturnsVerdict(t *testing.T) {
	client := &queueLLMClient{payloads: []any{checklistOutput{Decision: "pass"}}}
	loader := newTestLoader(t, "context_validator")
	validate := NewContextValidator(client, loader)

	doc := turn.New("t1", "s1", turn.ModeChat)
	verdict, err := validate(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Decision != turn.CheckApprove {
		t.Fatalf("unexpected decision: %s", verdict.Decision)
	}
}
