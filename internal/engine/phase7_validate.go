package engine

import (
	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// ValidationChecks are Phase 7's four boolean checks plus a scalar confidence, filled
// in by an LLM call against §2/§4/§6 (the call itself lives in NewValidator in
// phase7_handler.go; this file is the pure decision table that consumes its
// output, generalized from the teacher's field-by-field actionValidator rules into a
// confidence-threshold table).
type ValidationChecks struct {
	ClaimsSupported bool
	NoHallucination bool
	QueryAddressed  bool
	CoherentFormat  bool
	Confidence      float64
	UnsupportedClaimCount int
	GoalScores            map[string]float64 // goal id -> 0..1, for the multi-goal aggregate
}

// Decide applies Phase 7's decision table to checks, returning the resulting
// ValidationOutcome. thresholds carries the tunable confidence bands (defaults
// 0.80/0.50/0.30 per config.ValidationThresholds).
func Decide(checks ValidationChecks, thresholds config.ValidationThresholds) ValidationOutcome {
	if len(checks.GoalScores) > 1 {
		if outcome, ok := decideMultiGoal(checks); ok {
			return outcome
		}
	}

	allPass := checks.ClaimsSupported && checks.NoHallucination && checks.QueryAddressed && checks.CoherentFormat

	switch {
	case allPass && checks.Confidence >= thresholds.Approve:
		return ValidationOutcome{Decision: turn.DecisionApprove, Confidence: checks.Confidence}

	case isMinorIssue(checks) && checks.Confidence >= thresholds.Revise && checks.Confidence < thresholds.Approve:
		return ValidationOutcome{
			Decision:   turn.DecisionRevise,
			Confidence: checks.Confidence,
			Hints:      minorIssueHints(checks),
		}

	case isApproachIssue(checks) && checks.Confidence >= thresholds.Retry && checks.Confidence < thresholds.Revise:
		return ValidationOutcome{
			Decision:       turn.DecisionRetry,
			Confidence:     checks.Confidence,
			SuggestedFixes: approachIssueFixes(checks),
		}

	default:
		return ValidationOutcome{Decision: turn.DecisionFail, Confidence: checks.Confidence}
	}
}

// isMinorIssue is true when only claims_supported or coherent_format failed — never
// query_addressed or a hallucination, which are approach-level problems.
func isMinorIssue(c ValidationChecks) bool {
	if c.QueryAddressed == false || c.NoHallucination == false {
		return false
	}
	return !c.ClaimsSupported || !c.CoherentFormat
}

// isApproachIssue is query_addressed failing, or more than one unsupported claim.
func isApproachIssue(c ValidationChecks) bool {
	return !c.QueryAddressed || c.UnsupportedClaimCount > 1
}

func minorIssueHints(c ValidationChecks) []string {
	var hints []string
	if !c.ClaimsSupported {
		hints = append(hints, "cite every factual claim against a §4 or §2 entry")
	}
	if !c.CoherentFormat {
		hints = append(hints, "fix markdown formatting: balance code blocks, ensure links are well-formed")
	}
	return hints
}

func approachIssueFixes(c ValidationChecks) []string {
	var fixes []string
	if !c.QueryAddressed {
		fixes = append(fixes, "replan to directly address the resolved query from §0")
	}
	if c.UnsupportedClaimCount > 1 {
		fixes = append(fixes, "gather additional evidence before re-synthesizing; too many claims lack support")
	}
	return fixes
}

// decideMultiGoal applies the per-goal aggregate table. It always returns ok=true;
// Decide calls it only when GoalScores holds more than one goal.
func decideMultiGoal(c ValidationChecks) (ValidationOutcome, bool) {
	var pass, partial, fail int
	for _, score := range c.GoalScores {
		switch {
		case score >= 0.75:
			pass++
		case score >= 0.50:
			partial++
		default:
			fail++
		}
	}

	switch {
	case fail == 0 && partial == 0:
		return ValidationOutcome{Decision: turn.DecisionApprove, Confidence: c.Confidence}, true
	case fail == 0 && partial > 0:
		return ValidationOutcome{
			Decision:   turn.DecisionApprove,
			Confidence: c.Confidence,
			Hints:      []string{"one or more goals only partially addressed"},
		}, true
	case fail == 1:
		return ValidationOutcome{
			Decision:   turn.DecisionRevise,
			Confidence: c.Confidence,
			Hints:      []string{"one goal failed; revise synthesis to cover it"},
		}, true
	default:
		return ValidationOutcome{
			Decision:       turn.DecisionRetry,
			Confidence:     c.Confidence,
			SuggestedFixes: []string{"multiple goals failed; replan with a narrower approach per goal"},
		}, true
	}
}
