package engine

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/internal/llm"
)

// compressionSchema is NERVES' structured output: a summary plus a provenance note
// tying it back to what was compressed, never a silent truncation.
type compressionSchema struct {
	Summary        string `json:"summary" jsonschema_description:"condensed replacement for the staged section content"`
	ProvenanceNote string `json:"provenance_note" jsonschema_description:"what was summarized and from which entries, so a reader can trace back to source"`
}

// Compressor is NERVES: a low-temperature LLM summarization role. No phase handler
// calls it, and the Orchestrator neither constructs nor calls it: during a turn no
// staged section is measured against its budget or compressed. Grounded on the teacher's role/temperature separation in
// common/llm/client.go, generalized from a single-purpose client into a dedicated
// summarization role.
type Compressor struct {
	client llm.Client
}

func NewCompressor(client llm.Client) *Compressor {
	return &Compressor{client: client}
}

// Compress summarizes content (a staged copy of a section, never §4's persisted log
// itself) down to fit within budgetTokens, returning the replacement text and a
// provenance note the caller attaches alongside it.
func (c *Compressor) Compress(ctx context.Context, sectionName, content string, budgetTokens int) (summary, provenance string, err error) {
	var out compressionSchema
	_, err = c.client.Chat(ctx, llm.Request{
		SystemPrompt: "You compress staged turn-engine context sections without losing citable facts.",
		UserPrompt: fmt.Sprintf(
			"Summarize the following %s content to fit within approximately %d tokens. "+
				"Preserve every fact a downstream answer might cite; drop only redundant phrasing.\n\n%s",
			sectionName, budgetTokens, content,
		),
		SchemaName:  "nerves_compression",
		Schema:      llm.GenerateSchema[compressionSchema](),
		MaxTokens:   budgetTokens,
		Temperature: llm.Temp(0),
	}, &out)
	if err != nil {
		return "", "", fmt.Errorf("nerves compression: %w", err)
	}
	return out.Summary, out.ProvenanceNote, nil
}

// EstimateTokens is a cheap character-count-based heuristic (four characters per
// token). The Orchestrator calls neither this nor Compress.
func EstimateTokens(s string) int {
	return len(s) / 4
}
