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

type executorDecision struct {
	Action        string   `json:"action" jsonschema:"enum=EXECUTE,enum=ANALYZE,enum=COMPLETE,enum=BLOCKED"`
	Command       string   `json:"command,omitempty"`
	GoalsAffected []string `json:"goals_affected,omitempty"`
	Note          string   `json:"note,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// commandHandler is the subset of *Coordinator the Executor needs; a narrow interface
// here keeps the inner loop testable without a real Workflow Registry/tool catalog.
type commandHandler interface {
	Handle(ctx context.Context, mode turn.Mode, command string, doc *turn.Document) ([]turn.Claim, string)
}

// Executor is the combined Phase 4/5 inner loop: each iteration the Executor decides
// one action over the cumulative §4 log, and an EXECUTE action is handed to the
// Coordinator. Bounded by config.LoopLimits.MaxInnerIterations and
// MaxConsecutiveToolFails, both enforced here rather than by the Orchestrator, since
// only this loop has the per-iteration tool-failure count.
type Executor struct {
	client      llm.Client
	loader      *recipe.Loader
	coordinator commandHandler
	limits      config.LoopLimits
}

func NewExecutor(client llm.Client, loader *recipe.Loader, coordinator commandHandler, limits config.LoopLimits) *Executor {
	return &Executor{client: client, loader: loader, coordinator: coordinator, limits: limits}
}

// Execute is the Orchestrator's combined Execute handler field.
func (e *Executor) Execute(ctx context.Context, doc *turn.Document) error {
	consecutiveFails := 0
	maxIterations := e.limits.MaxInnerIterations
	if maxIterations <= 0 {
		maxIterations = 8
	}
	maxFails := e.limits.MaxConsecutiveToolFails
	if maxFails <= 0 {
		maxFails = 3
	}

	for i := 0; i < maxIterations; i++ {
		decision, err := e.decide(ctx, doc)
		if err != nil {
			return fmt.Errorf("phase 4 executor decision: %w", err)
		}

		switch decision.Action {
		case "COMPLETE":
			return nil

		case "BLOCKED":
			doc.AppendExecution(turn.ExecutionEntry{Command: decision.Reason, Status: "blocked"})
			return nil

		case "ANALYZE":
			doc.AppendExecution(turn.ExecutionEntry{Command: decision.Note, Status: "ok"})

		case "EXECUTE":
			command := withInjections(doc, decision.Command)
			claims, status := e.coordinator.Handle(ctx, doc.S0.Mode, command, doc)
			doc.AppendExecution(turn.ExecutionEntry{
				Command: command,
				Claims:  claims,
				Status:  status,
			})

			if status != "ok" {
				consecutiveFails++
				if consecutiveFails >= maxFails {
					doc.AppendExecution(turn.ExecutionEntry{
						Command: "forced blocked: too many consecutive tool failures",
						Status:  "blocked",
					})
					return nil
				}
			} else {
				consecutiveFails = 0
			}

		default:
			return fmt.Errorf("%w: executor returned unknown action %q", ErrEmptyPhaseOutput, decision.Action)
		}
	}

	doc.AppendExecution(turn.ExecutionEntry{
		Command: "forced blocked: inner loop iteration limit reached",
		Status:  "blocked",
	})
	return nil
}

func (e *Executor) decide(ctx context.Context, doc *turn.Document) (executorDecision, error) {
	prompt, err := e.loader.Render("executor", map[string]any{
		"resolved_query": doc.S0.ResolvedQuery,
		"plan":           doc.S3.Plan,
		"execution_log":  renderExecutionLog(doc),
	})
	if err != nil {
		return executorDecision{}, fmt.Errorf("rendering executor prompt: %w", err)
	}

	var out executorDecision
	if _, err := e.client.Chat(ctx, llm.Request{
		SystemPrompt: prompt,
		UserPrompt:   "Decide the next action.",
		SchemaName:   "executor",
		Schema:       llm.GenerateSchema[executorDecision](),
		MaxTokens:    800,
		Temperature:  llm.Temp(0.2),
	}, &out); err != nil {
		return executorDecision{}, err
	}
	return out, nil
}

// withInjections prepends any mid-turn REDIRECT payload to command and appends
// ADD_CONTEXT payloads as additional context, draining both so they are applied once.
func withInjections(doc *turn.Document, command string) string {
	redirects, added := doc.DrainInjections()
	if len(redirects) == 0 && len(added) == 0 {
		return command
	}

	var b strings.Builder
	if len(redirects) > 0 {
		b.WriteString("REDIRECT: ")
		b.WriteString(strings.Join(redirects, "; "))
		b.WriteString(". ")
	}
	b.WriteString(command)
	if len(added) > 0 {
		b.WriteString(" (additional context: ")
		b.WriteString(strings.Join(added, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func renderExecutionLog(doc *turn.Document) string {
	var b strings.Builder
	for _, e := range doc.S4.Entries {
		fmt.Fprintf(&b, "[%d/%s] %s\n", e.Iteration, e.Status, e.Command)
		for _, c := range e.Claims {
			fmt.Fprintf(&b, "  - %s (%s)\n", c.Text, c.SourceRef)
		}
	}
	return b.String()
}
