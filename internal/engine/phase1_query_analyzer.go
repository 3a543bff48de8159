package engine

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/recipe"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// queryAnalyzerOutput is Phase 1's structured output: the resolved query plus the
// closed-set classification the rest of the pipeline branches on.
type queryAnalyzerOutput struct {
	ResolvedQuery    string            `json:"resolved_query" jsonschema_description:"the query with pronouns/references resolved against the rolling buffer"`
	Purpose          string            `json:"purpose" jsonschema:"enum=transactional-shopping,enum=informational,enum=navigational,enum=code,enum=recall,enum=clarification,enum=retry,enum=metadata,enum=trivial"`
	DataRequirements map[string]string `json:"data_requirements"`
	ActionVerbs      []string          `json:"action_verbs"`
	IsFollowup       bool              `json:"is_followup"`
}

// NewQueryAnalyzer builds Phase 1's handler: one structured call that resolves §0 from
// the raw query staged into doc by the Orchestrator before the phase sequence starts.
// Grounded on the teacher's role/temperature-per-call convention in common/llm; this is
// a new handler shape since the teacher has no query-resolution phase of its own.
func NewQueryAnalyzer(client llm.Client, loader *recipe.Loader) func(ctx context.Context, doc *turn.Document) error {
	return func(ctx context.Context, doc *turn.Document) error {
		if doc.S0.RawQuery == "" {
			return fmt.Errorf("%w: empty raw query", ErrEmptyPhaseOutput)
		}

		prompt, err := loader.Render("query_analyzer", map[string]any{
			"raw_query": doc.S0.RawQuery,
		})
		if err != nil {
			return fmt.Errorf("rendering query analyzer prompt: %w", err)
		}

		var out queryAnalyzerOutput
		if _, err := client.Chat(ctx, llm.Request{
			SystemPrompt: prompt,
			UserPrompt:   doc.S0.RawQuery,
			SchemaName:   "query_analyzer",
			Schema:       llm.GenerateSchema[queryAnalyzerOutput](),
			MaxTokens:    800,
			Temperature:  llm.Temp(0),
		}, &out); err != nil {
			return fmt.Errorf("phase 1 query analyzer chat: %w", err)
		}

		if out.ResolvedQuery == "" {
			return fmt.Errorf("%w: query analyzer returned no resolved query", ErrEmptyPhaseOutput)
		}

		dataReqs := make(map[string]any, len(out.DataRequirements))
		for k, v := range out.DataRequirements {
			dataReqs[k] = v
		}

		doc.CommitSection0(turn.Section0{
			RawQuery:         doc.S0.RawQuery,
			ResolvedQuery:    out.ResolvedQuery,
			Purpose:          turn.Purpose(out.Purpose),
			DataRequirements: dataReqs,
			ActionVerbs:      out.ActionVerbs,
			IsFollowup:       out.IsFollowup,
			Mode:             doc.S0.Mode,
		})
		return nil
	}
}

// checklistOutput is the shared shape of Phase 1.5/2.5's verdict: both gate a section
// against a checklist and emit the same three-way decision plus issues/gaps.
type checklistOutput struct {
	Decision string   `json:"decision" jsonschema:"enum=pass,enum=retry,enum=clarify"`
	Issues   []string `json:"issues"`
	Gaps     []string `json:"gaps"`
}

// NewQueryAnalyzerValidator builds Phase 1.5's handler: a lightweight checklist pass
// over §0 (required-field coverage, internal consistency, no contradiction with stated
// constraints).
func NewQueryAnalyzerValidator(client llm.Client, loader *recipe.Loader) func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error) {
	return func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error) {
		prompt, err := loader.Render("query_analyzer_validator", map[string]any{
			"resolved_query":    doc.S0.ResolvedQuery,
			"purpose":           doc.S0.Purpose,
			"data_requirements": doc.S0.DataRequirements,
		})
		if err != nil {
			return ValidatorVerdict{}, fmt.Errorf("rendering query analyzer validator prompt: %w", err)
		}

		var out checklistOutput
		if _, err := client.Chat(ctx, llm.Request{
			SystemPrompt: prompt,
			UserPrompt:   "Evaluate §0 against the checklist.",
			SchemaName:   "query_analyzer_validator",
			Schema:       llm.GenerateSchema[checklistOutput](),
			MaxTokens:    400,
			Temperature:  llm.Temp(0),
		}, &out); err != nil {
			return ValidatorVerdict{}, fmt.Errorf("phase 1.5 validator chat: %w", err)
		}

		doc.CommitSection1(turn.Section1{Decision: out.Decision, Issues: out.Issues, Gaps: out.Gaps})
		return ValidatorVerdict{Decision: turn.CheckDecision(out.Decision), Hints: append(out.Issues, out.Gaps...)}, nil
	}
}
