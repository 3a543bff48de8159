package engine

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/recipe"
	"github.com/basegraphhq/turnengine/internal/turn"
)

type validationChecksOutput struct {
	ClaimsSupported       bool               `json:"claims_supported"`
	NoHallucination       bool               `json:"no_hallucination"`
	QueryAddressed        bool               `json:"query_addressed"`
	CoherentFormat        bool               `json:"coherent_format"`
	Confidence            float64            `json:"confidence"`
	UnsupportedClaimCount int                `json:"unsupported_claim_count"`
	GoalScores            map[string]float64 `json:"goal_scores,omitempty"`
	Issues                []string           `json:"issues"`
}

// NewValidator builds Phase 7's handler: an LLM call produces the four boolean checks
// plus confidence, then Decide applies the tunable decision table. Every attempt is
// appended to §7, never overwritten.
func NewValidator(client llm.Client, loader *recipe.Loader, thresholds config.ValidationThresholds) func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error) {
	return func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error) {
		prompt, err := loader.Render("phase7_validate", map[string]any{
			"resolved_query": doc.S0.ResolvedQuery,
			"draft":          doc.S6.Draft,
			"plan":           doc.S3.Plan,
		})
		if err != nil {
			return ValidationOutcome{}, fmt.Errorf("rendering phase 7 validator prompt: %w", err)
		}

		var out validationChecksOutput
		if _, err := client.Chat(ctx, llm.Request{
			SystemPrompt: prompt,
			UserPrompt:   doc.S6.Draft,
			SchemaName:   "phase7_validate",
			Schema:       llm.GenerateSchema[validationChecksOutput](),
			MaxTokens:    600,
			Temperature:  llm.Temp(0),
		}, &out); err != nil {
			return ValidationOutcome{}, fmt.Errorf("phase 7 validation chat: %w", err)
		}

		checks := ValidationChecks{
			ClaimsSupported:       out.ClaimsSupported,
			NoHallucination:       out.NoHallucination,
			QueryAddressed:        out.QueryAddressed,
			CoherentFormat:        out.CoherentFormat,
			Confidence:            out.Confidence,
			UnsupportedClaimCount: out.UnsupportedClaimCount,
			GoalScores:            out.GoalScores,
		}
		outcome := Decide(checks, thresholds)

		doc.AppendValidationAttempt(turn.ValidationAttempt{
			Decision:        outcome.Decision,
			Confidence:      outcome.Confidence,
			ClaimsSupported: out.ClaimsSupported,
			NoHallucination: out.NoHallucination,
			QueryAddressed:  out.QueryAddressed,
			CoherentFormat:  out.CoherentFormat,
			Issues:          out.Issues,
			RevisionHints:   outcome.Hints,
			SuggestedFixes:  outcome.SuggestedFixes,
		})

		return outcome, nil
	}
}
