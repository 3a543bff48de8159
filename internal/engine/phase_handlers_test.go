package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/recipe"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// queueLLMClient returns its queued payloads in order, one per Chat call, so a test can
// drive a multi-iteration loop (e.g. the Executor) through a fixed decision sequence.
type queueLLMClient struct {
	payloads []any
	calls    int
}

func (q *queueLLMClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	raw, _ := json.Marshal(q.payloads[q.calls])
	q.calls++
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, err
	}
	return &llm.Response{}, nil
}

func (q *queueLLMClient) Model() string { return "fake-model" }

func newTestLoader(t *testing.T, recipes ...string) *recipe.Loader {
	t.Helper()
	l, err := recipe.NewLoader("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range recipes {
		if err := l.Register(name, "test", nil, 500, "static test prompt"); err != nil {
			t.Fatalf("registering recipe %s: %v", name, err)
		}
	}
	return l
}

func TestQueryAnalyzerCommitsResolvedSection0(t *testing.T) {
	client := &queueLLMClient{payloads: []any{queryAnalyzerOutput{
		ResolvedQuery: "cheapest laptop under $500",
		Purpose:       string(turn.PurposeTransactionalShopping),
		ActionVerbs:   []string{"find", "compare"},
	}}}
	loader := newTestLoader(t, "query_analyzer")

	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.CommitSection0(turn.Section0{Mode: turn.ModeChat, RawQuery: "show me more like it"})

	analyzer := NewQueryAnalyzer(client, loader)
	if err := analyzer(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.S0.ResolvedQuery != "cheapest laptop under $500" {
		t.Fatalf("unexpected resolved query: %q", doc.S0.ResolvedQuery)
	}
	if doc.S0.Purpose != turn.PurposeTransactionalShopping {
		t.Fatalf("unexpected purpose: %q", doc.S0.Purpose)
	}
}

func TestQueryAnalyzerRejectsEmptyRawQuery(t *testing.T) {
	loader := newTestLoader(t, "query_analyzer")
	doc := turn.New("t1", "s1", turn.ModeChat)

	analyzer := NewQueryAnalyzer(&queueLLMClient{}, loader)
	if err := analyzer(context.Background(), doc); err == nil {
		t.Fatal("expected error for empty raw query")
	}
}

func TestQueryAnalyzerValidatorCommitsSection1(t *testing.T) {
	client := &queueLLMClient{payloads: []any{checklistOutput{Decision: "retry", Issues: []string{"missing budget"}}}}
	loader := newTestLoader(t, "query_analyzer_validator")
	doc := turn.New("t1", "s1", turn.ModeChat)

	validate := NewQueryAnalyzerValidator(client, loader)
	verdict, err := validate(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Decision != turn.CheckRetry {
		t.Fatalf("unexpected decision: %s", verdict.Decision)
	}
	if doc.S1.Decision != "retry" {
		t.Fatalf("expected §1 to be committed, got %+v", doc.S1)
	}
}

type fakeCommandHandler struct {
	statuses []string
	calls    int
	commands []string
}

func (f *fakeCommandHandler) Handle(ctx context.Context, mode turn.Mode, command string, doc *turn.Document) ([]turn.Claim, string) {
	f.commands = append(f.commands, command)
	status := "ok"
	if f.calls < len(f.statuses) {
		status = f.statuses[f.calls]
	}
	f.calls++
	return nil, status
}

func TestExecutorRunsUntilComplete(t *testing.T) {
	client := &queueLLMClient{payloads: []any{
		executorDecision{Action: "EXECUTE", Command: "search for laptops"},
		executorDecision{Action: "COMPLETE"},
	}}
	loader := newTestLoader(t, "executor")
	coordinator := &fakeCommandHandler{statuses: []string{"ok"}}
	exec := NewExecutor(client, loader, coordinator, testLimits())

	doc := turn.New("t1", "s1", turn.ModeChat)
	if err := exec.Execute(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.S4.Entries) != 1 {
		t.Fatalf("expected exactly one execution entry, got %d", len(doc.S4.Entries))
	}
	if coordinator.calls != 1 {
		t.Fatalf("expected coordinator called once, got %d", coordinator.calls)
	}
}

func TestExecutorBlocksAfterConsecutiveFailures(t *testing.T) {
	limits := testLimits()
	limits.MaxInnerIterations = 10
	limits.MaxConsecutiveToolFails = 2

	client := &queueLLMClient{payloads: []any{
		executorDecision{Action: "EXECUTE", Command: "a"},
		executorDecision{Action: "EXECUTE", Command: "b"},
	}}
	loader := newTestLoader(t, "executor")
	coordinator := &fakeCommandHandler{statuses: []string{"tool_failure", "tool_failure"}}
	exec := NewExecutor(client, loader, coordinator, limits)

	doc := turn.New("t1", "s1", turn.ModeChat)
	if err := exec.Execute(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := doc.S4.Entries[len(doc.S4.Entries)-1]
	if last.Status != "blocked" {
		t.Fatalf("expected forced block after consecutive failures, got %+v", last)
	}
}

func TestWithInjectionsAppliesRedirectAndContext(t *testing.T) {
	doc := turn.New("t1", "s1", turn.ModeChat)
	doc.QueueInjection(true, "switch to gaming laptops")
	doc.QueueInjection(false, "budget is now $800")

	out := withInjections(doc, "search for laptops")
	if out == "search for laptops" {
		t.Fatal("expected injections to modify the command")
	}

	redirects, added := doc.DrainInjections()
	if len(redirects) != 0 || len(added) != 0 {
		t.Fatal("expected withInjections to drain the queue")
	}
}
