package recipe

import "testing"

func TestLoaderRegisterFallbackAndRender(t *testing.T) {
	l, err := NewLoader("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = l.Register("query_analyzer", "query_analyzer", nil, 1000, "Resolve the query: {{.Query}}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rendered, err := l.Render("query_analyzer", struct{ Query string }{Query: "cheapest laptop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Resolve the query: cheapest laptop"
	if rendered != want {
		t.Fatalf("got %q, want %q", rendered, want)
	}
}

func TestLoaderRenderUnknownRecipe(t *testing.T) {
	l, _ := NewLoader("")
	if _, err := l.Render("missing", nil); err == nil {
		t.Fatal("expected error for unknown recipe")
	}
}

func TestPlanCriticDisabledByDefault(t *testing.T) {
	l, _ := NewLoader("")
	_ = l.Register("planner", "planner", nil, 8192, "plan")
	r, ok := l.Recipe("planner")
	if !ok {
		t.Fatal("expected recipe to exist")
	}
	if r.PlanCriticEnabled {
		t.Fatal("expected plan critic disabled by default")
	}

	l.EnablePlanCritic("planner")
	r, _ = l.Recipe("planner")
	if !r.PlanCriticEnabled {
		t.Fatal("expected plan critic enabled after EnablePlanCritic")
	}
}
