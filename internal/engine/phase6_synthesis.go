package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/recipe"
	"github.com/basegraphhq/turnengine/internal/turn"
)

type synthesisOutput struct {
	Draft     string            `json:"draft"`
	SourceMap map[string]string `json:"source_map" jsonschema_description:"sentence/fact id -> claim id"`
}

// NewSynthesizer builds Phase 6's handler: drafts the response from §0 (purpose/format
// cues), §2, and §4's claims, citing every specific fact against a claim or record id.
// hints carry Phase 7's prior REVISE feedback.
func NewSynthesizer(client llm.Client, loader *recipe.Loader, budgets config.PhaseBudgets) func(ctx context.Context, doc *turn.Document, hints []string) error {
	return func(ctx context.Context, doc *turn.Document, hints []string) error {
		var evidence strings.Builder
		for _, r := range doc.S2.Records {
			fmt.Fprintf(&evidence, "§2 %s: %s\n", r.ID, r.Text)
		}
		for _, c := range doc.Claims() {
			freshness := "current"
			if c.Historical {
				freshness = "historical"
			}
			fmt.Fprintf(&evidence, "§4 %s [%s]: %s (source: %s)\n", c.ID, freshness, c.Text, c.SourceRef)
		}

		prompt, err := loader.Render("synthesis", map[string]any{
			"resolved_query": doc.S0.ResolvedQuery,
			"purpose":        doc.S0.Purpose,
			"plan":           doc.S3.Plan,
			"hints":          hints,
		})
		if err != nil {
			return fmt.Errorf("rendering synthesis prompt: %w", err)
		}

		var out synthesisOutput
		if _, err := client.Chat(ctx, llm.Request{
			SystemPrompt: prompt,
			UserPrompt:   evidence.String(),
			SchemaName:   "synthesis",
			Schema:       llm.GenerateSchema[synthesisOutput](),
			MaxTokens:    budgets.Section4Tokens,
			Temperature:  llm.Temp(0.4),
		}, &out); err != nil {
			return fmt.Errorf("phase 6 synthesis chat: %w", err)
		}

		if out.Draft == "" {
			return fmt.Errorf("%w: synthesis returned an empty draft", ErrEmptyPhaseOutput)
		}

		doc.CommitSynthesis(out.Draft, out.SourceMap)
		return nil
	}
}
