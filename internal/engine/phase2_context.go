package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/recipe"
	"github.com/basegraphhq/turnengine/internal/retrieval"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// NewContextRetriever builds Phase 2.1's handler: no LLM call, just priority-ordered
// composition over every configured retrieval.Source, staged onto doc for Phase 2.2 to
// read. A failing source degrades context quality rather than failing the turn.
func NewContextRetriever(sources []retrieval.Source) func(ctx context.Context, doc *turn.Document) error {
	return func(ctx context.Context, doc *turn.Document) error {
		claims, warnings := retrieval.Compose(ctx, sources, doc.S0.ResolvedQuery, doc.SessionID)
		if len(warnings) > 0 {
			slog.WarnContext(ctx, "context retrieval degraded", "warnings", warnings)
		}

		records := make([]turn.Record, 0, len(claims))
		for _, c := range claims {
			records = append(records, turn.Record{
				SourceKind:   string(c.EvidenceKind),
				ID:           c.ID,
				Text:         c.Text,
				Historical:   c.Historical,
				RetrievedAt:  c.ProducedAt,
				EvidenceKind: string(c.EvidenceKind),
			})
		}
		doc.SetStagedRecords(records)
		return nil
	}
}

type contextSynthesisOutput struct {
	Summary string `json:"summary"`
}

// NewContextSynthesizer builds Phase 2.2's handler: compresses the staged record list
// into a coherent §2 draft, preserving preferences, open questions, and still-fresh tool
// results per the freshness policy. hints carry Phase 2.5's prior "retry" feedback.
func NewContextSynthesizer(client llm.Client, loader *recipe.Loader, budgets config.PhaseBudgets) func(ctx context.Context, doc *turn.Document, hints []string) error {
	return func(ctx context.Context, doc *turn.Document, hints []string) error {
		var staged strings.Builder
		for _, r := range doc.S2.Records {
			freshness := "current"
			if r.Historical {
				freshness = "historical"
			}
			fmt.Fprintf(&staged, "- [%s/%s] %s\n", r.SourceKind, freshness, r.Text)
		}

		prompt, err := loader.Render("context_synthesis", map[string]any{
			"resolved_query": doc.S0.ResolvedQuery,
			"hints":          hints,
		})
		if err != nil {
			return fmt.Errorf("rendering context synthesis prompt: %w", err)
		}

		var out contextSynthesisOutput
		if _, err := client.Chat(ctx, llm.Request{
			SystemPrompt: prompt,
			UserPrompt:   staged.String(),
			SchemaName:   "context_synthesis",
			Schema:       llm.GenerateSchema[contextSynthesisOutput](),
			MaxTokens:    budgets.Section2Tokens,
			Temperature:  llm.Temp(0.2),
		}, &out); err != nil {
			return fmt.Errorf("phase 2.2 context synthesis chat: %w", err)
		}

		doc.StageSection2Summary(out.Summary)
		return nil
	}
}

// NewContextValidator builds Phase 2.5's handler: the same checklist-verdict shape as
// Phase 1.5, gating §2 instead of §0.
func NewContextValidator(client llm.Client, loader *recipe.Loader) func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error) {
	return func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error) {
		prompt, err := loader.Render("context_validator", map[string]any{
			"resolved_query": doc.S0.ResolvedQuery,
			"summary":        doc.S2.StagedSummary,
		})
		if err != nil {
			return ValidatorVerdict{}, fmt.Errorf("rendering context validator prompt: %w", err)
		}

		var out checklistOutput
		if _, err := client.Chat(ctx, llm.Request{
			SystemPrompt: prompt,
			UserPrompt:   "Evaluate §2 against the checklist.",
			SchemaName:   "context_validator",
			Schema:       llm.GenerateSchema[checklistOutput](),
			MaxTokens:    400,
			Temperature:  llm.Temp(0),
		}, &out); err != nil {
			return ValidatorVerdict{}, fmt.Errorf("phase 2.5 validator chat: %w", err)
		}

		return ValidatorVerdict{Decision: turn.CheckDecision(out.Decision), Hints: append(out.Issues, out.Gaps...)}, nil
	}
}
