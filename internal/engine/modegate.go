package engine

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/internal/turn"
)

// Result mirrors tools.Result/workflow.Result; duplicated here rather than imported so
// this package states only the narrow contract it needs, mirroring internal/workflow's
// ToolInvoker decoupling.
type Result struct {
	Status   string
	Data     any
	Claims   []turn.Claim
	Warnings []string
}

// ToolInvoker is satisfied by *tools.Registry (via a thin adapter at wiring time).
type ToolInvoker interface {
	Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (Result, error)
}

// ModeGate is the single point a phase handler goes through to reach a tool. The
// mutation check itself already lives in tools.Registry.Invoke (§4.14) — this type
// adds the second half of §4.12: confining which families a turn may even attempt,
// not just whether a mutating one may run. Grounded on the teacher's TaskRunner
// confining all git operations to r.repoRoot; here the confinement is a family
// allow-list per mode instead of a filesystem path.
type ModeGate struct {
	invoker    ToolInvoker
	allowChat  map[string]bool
	allowCode  map[string]bool
}

func NewModeGate(invoker ToolInvoker, chatFamilies, codeFamilies []string) *ModeGate {
	g := &ModeGate{invoker: invoker, allowChat: toSet(chatFamilies), allowCode: toSet(codeFamilies)}
	return g
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

// Invoke checks the per-mode family allow-list before delegating to the underlying
// registry (which independently enforces the mutation check). Two checks, two
// reasons to reject: an allow-listed-but-mutating family in chat mode is still
// rejected by the registry even if it passed the allow-list here.
func (g *ModeGate) Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (Result, error) {
	allowed := g.allowCode
	if mode == turn.ModeChat {
		allowed = g.allowChat
	}
	if len(allowed) > 0 && !allowed[family] {
		return Result{}, fmt.Errorf("mode gate: family %q not permitted in %s mode", family, mode)
	}
	return g.invoker.Invoke(ctx, mode, family, args)
}
