package engine

import (
	"context"
	"testing"

	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/turn"
	"github.com/basegraphhq/turnengine/internal/workflow"
)

type fakeWorkflowInvoker struct {
	result workflow.Result
	err    error
}

func (f *fakeWorkflowInvoker) Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (workflow.Result, error) {
	return f.result, f.err
}

type fakeModeInvoker struct {
	result Result
	err    error
	calls  []string
}

func (f *fakeModeInvoker) Invoke(ctx context.Context, mode turn.Mode, family string, args map[string]any) (Result, error) {
	f.calls = append(f.calls, family)
	return f.result, f.err
}

type fakeAgentClient struct {
	toolName string
	args     string
}

func (f *fakeAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	if f.toolName == "" {
		return &llm.AgentResponse{FinishReason: "stop"}, nil
	}
	return &llm.AgentResponse{
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: f.toolName, Arguments: f.args}},
	}, nil
}

func (f *fakeAgentClient) Model() string { return "fake-agent-model" }

func newTestCatalog(specs ...turn.ToolFamilySpec) Catalog {
	return func(mode turn.Mode) []turn.ToolFamilySpec { return specs }
}

func TestCoordinatorRoutesMatchedWorkflow(t *testing.T) {
	claim, _ := turn.NewClaim("c1", "price is $449", "tool:price_search", turn.EvidenceTool, 0.9)
	registry := workflow.NewRegistry()
	bundle, _ := turn.NewWorkflowBundle("price-check", []turn.WorkflowStep{{ToolFamily: "web_fetch", OnFailure: turn.FailureAbort}})
	bundle.Triggers = []string{"check price"}
	if err := registry.Register(bundle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wfEngine := workflow.NewEngine(&fakeWorkflowInvoker{result: workflow.Result{Status: "ok", Claims: []turn.Claim{claim}}})
	gate := NewModeGate(&fakeModeInvoker{}, nil, nil)
	coordinator := NewCoordinator(registry, wfEngine, gate, newTestCatalog(), &fakeAgentClient{})

	doc := turn.New("t1", "s1", turn.ModeChat)
	claims, status := coordinator.Handle(context.Background(), turn.ModeChat, "check price", doc)
	if status != "ok" {
		t.Fatalf("expected ok status, got %s", status)
	}
	if len(claims) != 1 || claims[0].ID != "c1" {
		t.Fatalf("expected workflow claim to flow through, got %+v", claims)
	}
}

func TestCoordinatorFallsBackToDirectToolPick(t *testing.T) {
	registry := workflow.NewRegistry() // no bundles registered: always a miss
	wfEngine := workflow.NewEngine(&fakeWorkflowInvoker{})
	claim, _ := turn.NewClaim("c2", "issue #4 is open", "git:issue:4", turn.EvidenceTool, 0.8)
	invoker := &fakeModeInvoker{result: Result{Status: "ok", Claims: []turn.Claim{claim}}}
	gate := NewModeGate(invoker, nil, nil)
	catalog := newTestCatalog(turn.ToolFamilySpec{Name: "git_read", Description: "reads issues"})
	agent := &fakeAgentClient{toolName: "git_read", args: `{"issue_id": 4}`}
	coordinator := NewCoordinator(registry, wfEngine, gate, catalog, agent)

	doc := turn.New("t1", "s1", turn.ModeChat)
	claims, status := coordinator.Handle(context.Background(), turn.ModeChat, "what's the status of issue 4", doc)
	if status != "ok" {
		t.Fatalf("expected ok status, got %s", status)
	}
	if len(claims) != 1 || claims[0].ID != "c2" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(invoker.calls) != 1 || invoker.calls[0] != "git_read" {
		t.Fatalf("expected direct invoke of git_read, got %v", invoker.calls)
	}
}

func TestCoordinatorBlocksWhenNoToolMatches(t *testing.T) {
	registry := workflow.NewRegistry()
	wfEngine := workflow.NewEngine(&fakeWorkflowInvoker{})
	gate := NewModeGate(&fakeModeInvoker{}, nil, nil)
	coordinator := NewCoordinator(registry, wfEngine, gate, newTestCatalog(), &fakeAgentClient{})

	doc := turn.New("t1", "s1", turn.ModeChat)
	_, status := coordinator.Handle(context.Background(), turn.ModeChat, "do something unknown", doc)
	if status != "blocked" {
		t.Fatalf("expected blocked status, got %s", status)
	}
}
