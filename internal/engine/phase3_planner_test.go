package engine

import (
	"context"
	"testing"

	"github.com/basegraphhq/turnengine/internal/turn"
)

func TestPlannerCommitsPlanFromGoals(t *testing.T) {
	client := &queueLLMClient{payloads: []any{planOutput{
		Goals: []goalOutput{{ID: "g1", Description: "find candidates", Priority: 1}},
		Approach:        "search then compare",
		Route:           string(turn.RouteExecutor),
		SuccessCriteria: []string{"at least 3 candidates"},
	}}}
	loader := newTestLoader(t, "planner")
	planner := NewPlanner(client, loader)

	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.CommitSection0(turn.Section0{ResolvedQuery: "cheapest laptop"})

	if err := planner.Plan(context.Background(), doc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.S3.Plan == nil || len(doc.S3.Plan.Goals) != 1 {
		t.Fatalf("expected a committed plan with one goal, got %+v", doc.S3.Plan)
	}
	if doc.S3.Plan.Route != turn.RouteExecutor {
		t.Fatalf("unexpected route: %s", doc.S3.Plan.Route)
	}
	if doc.PlanRevision != 1 {
		t.Fatalf("expected plan revision 1, got %d", doc.PlanRevision)
	}
}

func TestPlannerRejectsEmptyGoals(t *testing.T) {
	client := &queueLLMClient{payloads: []any{planOutput{Approach: "no goals here"}}}
	loader := newTestLoader(t, "planner")
	planner := NewPlanner(client, loader)

	doc := turn.New("t1", "s1", turn.ModeChat)
	if err := planner.Plan(context.Background(), doc, nil); err == nil {
		t.Fatal("expected error for a plan with no goals")
	}
}

func TestPlannerRunsCriticWhenEnabled(t *testing.T) {
	client := &queueLLMClient{payloads: []any{
		planOutput{
			Goals:    []goalOutput{{ID: "g1", Description: "find candidates"}},
			Approach: "search then compare",
			Route:    string(turn.RouteExecutor),
		},
		planCriticOutput{Verdict: "PASS"},
	}}
	loader := newTestLoader(t, "planner", "plan_critic")
	loader.EnablePlanCritic("planner")
	planner := NewPlanner(client, loader)

	doc := turn.New("t1", "s1", turn.ModeChat)
	if err := planner.Plan(context.Background(), doc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.S3.Plan.CriticVerdict != "PASS" {
		t.Fatalf("expected critic verdict PASS, got %q", doc.S3.Plan.CriticVerdict)
	}
}
