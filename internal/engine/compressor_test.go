package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/basegraphhq/turnengine/internal/llm"
)

type fakeLLMClient struct {
	summary    string
	provenance string
}

func (f *fakeLLMClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	raw, _ := json.Marshal(compressionSchema{Summary: f.summary, ProvenanceNote: f.provenance})
	_ = json.Unmarshal(raw, result)
	return &llm.Response{}, nil
}

func (f *fakeLLMClient) Model() string { return "fake-model" }

func TestCompressorReturnsSummaryAndProvenance(t *testing.T) {
	client := &fakeLLMClient{summary: "condensed", provenance: "summarized entries 1-5"}
	c := NewCompressor(client)

	summary, provenance, err := c.Compress(context.Background(), "§4", "a very long execution log...", 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "condensed" || provenance != "summarized entries 1-5" {
		t.Fatalf("unexpected result: %q / %q", summary, provenance)
	}
}

func TestEstimateTokensScalesWithLength(t *testing.T) {
	short := EstimateTokens("hello")
	long := EstimateTokens("hello world this is a much longer string of text")
	if long <= short {
		t.Fatalf("expected longer string to estimate more tokens, got short=%d long=%d", short, long)
	}
}
