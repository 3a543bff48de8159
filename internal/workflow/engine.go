package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/basegraphhq/turnengine/internal/turn"
)

// ToolInvoker is the subset of the Tool Registry the engine needs; accepting the
// interface instead of a concrete type keeps this package independent of internal/tools.
type ToolInvoker interface {
	Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (Result, error)
}

// Result mirrors tools.Result; duplicated here (rather than imported) so this package
// has no dependency on internal/tools, matching the teacher's convention of keeping
// brain/ decoupled from concrete service clients behind narrow interfaces.
type Result struct {
	Status   string
	Data     any
	Claims   []turn.Claim
	Warnings []string
}

// StepOutcome records what happened at one step, fed back into Vars for later steps'
// templates and returned to the Coordinator as part of the execution log entry.
type StepOutcome struct {
	ToolFamily string
	Args       map[string]any
	Result     Result
	Err        error
	Skipped    bool
}

// Engine interprets one matched WorkflowBundle's steps in order.
type Engine struct {
	invoker ToolInvoker
}

func NewEngine(invoker ToolInvoker) *Engine {
	return &Engine{invoker: invoker}
}

// Run executes bundle's steps against vars (the template substitution source: command
// slots, §0/§2 values, and prior step outputs keyed "stepN.field"). It stops at the
// first step whose OnFailure policy is "abort" and that step fails; "continue" steps
// that fail are recorded but do not halt the run; "fallback-step" runs the bundle step
// named by FallbackStep in place of the failed one, and that step is not run again at
// its own position later in the list.
func (e *Engine) Run(ctx context.Context, mode turn.Mode, bundle *turn.WorkflowBundle, vars map[string]any) ([]StepOutcome, error) {
	outcomes := make([]StepOutcome, 0, len(bundle.Steps))
	scope := cloneVars(vars)
	fallbackRan := map[string]bool{}

	for i, step := range bundle.Steps {
		if fallbackRan[step.ToolFamily] {
			continue
		}
		outcome, err := e.runStep(ctx, mode, step, scope)
		outcomes = append(outcomes, outcome)
		scope[fmt.Sprintf("step%d", i+1)] = outcome.Result.Data

		if outcome.Err == nil {
			continue
		}

		switch step.OnFailure {
		case turn.FailureContinue:
			continue
		case turn.FailureFallback:
			fallback, ok := bundle.FindStep(step.FallbackStep)
			if !ok {
				return outcomes, fmt.Errorf("workflow %s: fallback step %q not found", bundle.ID, step.FallbackStep)
			}
			fbOutcome, fbErr := e.runStep(ctx, mode, fallback, scope)
			outcomes = append(outcomes, fbOutcome)
			if fbErr != nil {
				return outcomes, fmt.Errorf("workflow %s: fallback step failed: %w", bundle.ID, fbErr)
			}
			fallbackRan[fallback.ToolFamily] = true
		case turn.FailureAbort:
			return outcomes, fmt.Errorf("workflow %s: step %d (%s) aborted: %w", bundle.ID, i+1, step.ToolFamily, err)
		}
	}

	return outcomes, nil
}

func (e *Engine) runStep(ctx context.Context, mode turn.Mode, step turn.WorkflowStep, scope map[string]any) (StepOutcome, error) {
	args := renderArgs(step.ArgTemplate, scope)
	res, err := e.invoker.Invoke(ctx, mode, step.ToolFamily, args)
	outcome := StepOutcome{ToolFamily: step.ToolFamily, Args: args, Result: res, Err: err}
	return outcome, err
}

func cloneVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars)+4)
	for k, v := range vars {
		out[k] = v
	}
	return out
}

// renderArgs substitutes "{{key}}" placeholders in each template value against scope.
// Deliberately simpler than text/template: workflow arg templates are single-token
// references, not control-flow prompts, so a direct string replace is sufficient and
// keeps step wiring auditable at a glance.
func renderArgs(tmpl map[string]string, scope map[string]any) map[string]any {
	out := make(map[string]any, len(tmpl))
	for k, v := range tmpl {
		out[k] = substitute(v, scope)
	}
	return out
}

func substitute(tmpl string, scope map[string]any) any {
	if strings.HasPrefix(tmpl, "{{") && strings.HasSuffix(tmpl, "}}") {
		key := strings.TrimSpace(tmpl[2 : len(tmpl)-2])
		if v, ok := scope[key]; ok {
			return v
		}
		return nil
	}
	return tmpl
}
