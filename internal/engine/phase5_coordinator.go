package engine

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/turn"
	"github.com/basegraphhq/turnengine/internal/workflow"
)

// Catalog resolves the tool families available to the Coordinator's direct-pick path,
// already restricted to the turn's mode (bound to *tools.Registry.Families at wiring
// time so this package stays independent of internal/tools, per ModeGate's decoupling).
type Catalog func(mode turn.Mode) []turn.ToolFamilySpec

// Coordinator is Phase 5: it turns one Executor command into either a workflow run or a
// single direct tool call, never inventing a tool that isn't in the catalog. Grounded on
// the teacher's ChatWithTools + ParseToolArguments pattern in internal/brain/planner.go,
// repurposed from codebase exploration to tool selection.
type Coordinator struct {
	workflows *workflow.Registry
	wfEngine  *workflow.Engine
	gate      *ModeGate
	catalog   Catalog
	agent     llm.AgentClient
}

func NewCoordinator(workflows *workflow.Registry, wfEngine *workflow.Engine, gate *ModeGate, catalog Catalog, agent llm.AgentClient) *Coordinator {
	return &Coordinator{workflows: workflows, wfEngine: wfEngine, gate: gate, catalog: catalog, agent: agent}
}

// Handle resolves command against the Workflow Registry first (by literal trigger, then
// by §0 purpose), falling back to a direct tool pick. Status is one of "ok",
// "tool_failure", or "blocked" — an unresolved command is always "blocked", never a
// fabricated tool call.
func (c *Coordinator) Handle(ctx context.Context, mode turn.Mode, command string, doc *turn.Document) ([]turn.Claim, string) {
	vars := map[string]any{
		"command":        command,
		"resolved_query": doc.S0.ResolvedQuery,
		"summary":        doc.S2.Summary,
	}

	if bundles := c.workflows.Match(command); len(bundles) > 0 {
		claims, status, _ := c.runWorkflow(ctx, mode, bundles[0], vars)
		return claims, status
	}
	if bundles := c.workflows.Match(string(doc.S0.Purpose)); len(bundles) > 0 {
		claims, status, _ := c.runWorkflow(ctx, mode, bundles[0], vars)
		return claims, status
	}

	claims, status, err := c.runDirect(ctx, mode, command)
	if err != nil {
		return claims, "blocked"
	}
	return claims, status
}

func (c *Coordinator) runWorkflow(ctx context.Context, mode turn.Mode, bundle *turn.WorkflowBundle, vars map[string]any) ([]turn.Claim, string, error) {
	outcomes, err := c.wfEngine.Run(ctx, mode, bundle, vars)
	status := "ok"
	var claims []turn.Claim
	for _, o := range outcomes {
		claims = append(claims, o.Result.Claims...)
		if o.Err != nil {
			status = "tool_failure"
		}
	}
	if err != nil {
		status = "tool_failure"
	}
	return claims, status, err
}

func (c *Coordinator) runDirect(ctx context.Context, mode turn.Mode, command string) ([]turn.Claim, string, error) {
	specs := c.catalog(mode)
	if len(specs) == 0 {
		return nil, "blocked", fmt.Errorf("coordinator: no tool families available in %s mode", mode)
	}

	tools := make([]llm.Tool, len(specs))
	for i, s := range specs {
		tools[i] = llm.Tool{Name: llm.SanitizeName(s.Name), Description: s.Description, Parameters: s.InputSchema}
	}

	resp, err := c.agent.ChatWithTools(ctx, llm.AgentRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You are a tool-selection expert. Call exactly one tool from the catalog that satisfies the command. Never invent a tool or argument not present in its schema."},
			{Role: "user", Content: command},
		},
		Tools: tools,
	})
	if err != nil {
		return nil, "tool_failure", fmt.Errorf("coordinator tool selection: %w", err)
	}
	if len(resp.ToolCalls) == 0 {
		return nil, "blocked", fmt.Errorf("coordinator: no matching tool for command %q", command)
	}

	tc := resp.ToolCalls[0]
	args, err := llm.ParseToolArguments[map[string]any](tc.Arguments)
	if err != nil {
		return nil, "tool_failure", fmt.Errorf("parsing tool arguments: %w", err)
	}

	result, err := c.gate.Invoke(ctx, mode, tc.Name, args)
	if err != nil {
		return nil, "tool_failure", err
	}
	return result.Claims, "ok", nil
}
