package tools

import (
	"context"

	"github.com/basegraphhq/turnengine/internal/engine"
	"github.com/basegraphhq/turnengine/internal/turn"
	"github.com/basegraphhq/turnengine/internal/workflow"
)

// EngineInvoker and WorkflowInvoker adapt *Registry to the engine and workflow
// packages' own ToolInvoker interfaces. Both narrow interfaces have the same method
// shape as Registry.Invoke already, but each names its own Result type (by design,
// per their decoupling comments), so Go's exact-named-type interface matching means
// *Registry satisfies neither directly — these two one-line conversions are the
// adapter deferred at package-split time.
type EngineInvoker struct{ Registry *Registry }

func NewEngineInvoker(r *Registry) EngineInvoker { return EngineInvoker{Registry: r} }

func (a EngineInvoker) Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (engine.Result, error) {
	res, err := a.Registry.Invoke(ctx, mode, family, args)
	return engine.Result{Status: res.Status, Data: res.Data, Claims: res.Claims, Warnings: res.Warnings}, err
}

type WorkflowInvoker struct{ Registry *Registry }

func NewWorkflowInvoker(r *Registry) WorkflowInvoker { return WorkflowInvoker{Registry: r} }

func (a WorkflowInvoker) Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (workflow.Result, error) {
	res, err := a.Registry.Invoke(ctx, mode, family, args)
	return workflow.Result{Status: res.Status, Data: res.Data, Claims: res.Claims, Warnings: res.Warnings}, err
}
