package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/turn"
)

func testLimits() config.LoopLimits {
	return config.LoopLimits{
		MaxQueryAnalyzerRetries: 1,
		MaxContextRetries:       1,
		MaxInnerIterations:      5,
		MaxRevise:               2,
		MaxRetry:                1,
		MaxCombinedValidation:   3,
	}
}

func approveEverythingHandlers() PhaseHandlers {
	return PhaseHandlers{
		QueryAnalyzer: func(ctx context.Context, doc *turn.Document) error { return nil },
		QueryAnalyzerValidate: func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error) {
			return ValidatorVerdict{Decision: turn.CheckApprove}, nil
		},
		ContextRetrieve:   func(ctx context.Context, doc *turn.Document) error { return nil },
		ContextSynthesize: func(ctx context.Context, doc *turn.Document, hints []string) error { return nil },
		ContextValidate: func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error) {
			return ValidatorVerdict{Decision: turn.CheckApprove}, nil
		},
		Plan:      func(ctx context.Context, doc *turn.Document, fixes []string) error { return nil },
		Execute:   func(ctx context.Context, doc *turn.Document) error { return nil },
		Synthesize: func(ctx context.Context, doc *turn.Document, hints []string) error { return nil },
		Validate: func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error) {
			return ValidationOutcome{Decision: turn.DecisionApprove, Confidence: 0.95}, nil
		},
		Save: func(ctx context.Context, doc *turn.Document) error { return nil },
	}
}

func TestHandleTurnApprovesOnFirstPass(t *testing.T) {
	o := NewOrchestrator(approveEverythingHandlers(), NewInjectionManager(), testLimits())
	result, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Partial {
		t.Fatalf("expected non-partial result, got %+v", result)
	}
}

func TestHandleTurnEmitsProgressCheckpoints(t *testing.T) {
	var phases []string
	o := NewOrchestrator(approveEverythingHandlers(), NewInjectionManager(), testLimits()).
		WithProgress(func(ctx context.Context, sessionID, phase, status string) {
			phases = append(phases, phase+":"+status)
		})
	if _, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(phases) == 0 {
		t.Fatal("expected at least one progress checkpoint")
	}
	if phases[len(phases)-1] != "save:completed" {
		t.Fatalf("expected turn to end with save:completed, got %v", phases)
	}
}

func TestHandleTurnClarificationShortCircuits(t *testing.T) {
	handlers := approveEverythingHandlers()
	handlers.QueryAnalyzerValidate = func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error) {
		return ValidatorVerdict{Decision: turn.CheckClarify}, nil
	}
	o := NewOrchestrator(handlers, NewInjectionManager(), testLimits())
	result, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reason != "clarification_needed" {
		t.Fatalf("expected clarification_needed, got %q", result.Reason)
	}
}

func TestHandleTurnExhaustsReviseAndReturnsBestSeen(t *testing.T) {
	handlers := approveEverythingHandlers()
	calls := 0
	handlers.Validate = func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error) {
		calls++
		return ValidationOutcome{Decision: turn.DecisionRevise, Confidence: float64(calls) * 0.1}, nil
	}
	o := NewOrchestrator(handlers, NewInjectionManager(), testLimits())
	result, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Partial {
		t.Fatal("expected partial result after exhausting revise budget")
	}
	if calls > 3 {
		t.Fatalf("expected at most combined budget (3) validate calls, got %d", calls)
	}
}

func TestHandleTurnRestoresBestSeenDraftOnExhaustedRevise(t *testing.T) {
	handlers := approveEverythingHandlers()
	calls := 0
	handlers.Synthesize = func(ctx context.Context, doc *turn.Document, hints []string) error {
		calls++
		doc.CommitSynthesis(fmt.Sprintf("draft-%d", calls), nil)
		return nil
	}
	handlers.Validate = func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error) {
		// Confidence peaks on the second attempt, then drops — the final attempt's draft
		// must not win just because it ran last.
		confidences := []float64{0.4, 0.9, 0.2}
		c := confidences[calls-1]
		return ValidationOutcome{Decision: turn.DecisionRevise, Confidence: c}, nil
	}
	o := NewOrchestrator(handlers, NewInjectionManager(), testLimits())
	result, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Partial {
		t.Fatal("expected partial result after exhausting revise budget")
	}
	if got := result.Document.S6.Draft; got != "draft-2" {
		t.Fatalf("expected best-seen draft-2 (confidence 0.9) restored into §6, got %q", got)
	}
}

func TestHandleTurnRetryWritesRevisionMarker(t *testing.T) {
	handlers := approveEverythingHandlers()
	calls := 0
	handlers.Validate = func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error) {
		calls++
		if calls == 1 {
			return ValidationOutcome{Decision: turn.DecisionRetry, Confidence: 0.2}, nil
		}
		return ValidationOutcome{Decision: turn.DecisionApprove, Confidence: 0.9}, nil
	}
	o := NewOrchestrator(handlers, NewInjectionManager(), testLimits())
	result, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawMarker bool
	for _, e := range result.Document.S4.Entries {
		if e.RevisionMarker {
			sawMarker = true
		}
	}
	if !sawMarker {
		t.Fatal("expected a revision marker entry in §4 after a phase 7 RETRY")
	}
}

func TestHandleTurnReviseDoesNotRerunExecutor(t *testing.T) {
	handlers := approveEverythingHandlers()
	executeCalls := 0
	handlers.Execute = func(ctx context.Context, doc *turn.Document) error {
		executeCalls++
		return nil
	}
	validateCalls := 0
	handlers.Validate = func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error) {
		validateCalls++
		if validateCalls < 3 {
			return ValidationOutcome{Decision: turn.DecisionRevise, Confidence: 0.5}, nil
		}
		return ValidationOutcome{Decision: turn.DecisionApprove, Confidence: 0.9}, nil
	}
	o := NewOrchestrator(handlers, NewInjectionManager(), testLimits())
	if _, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validateCalls != 3 {
		t.Fatalf("expected 3 validate calls, got %d", validateCalls)
	}
	if executeCalls != 1 {
		t.Fatalf("expected the executor to run once (REVISE should not re-run it), got %d", executeCalls)
	}
}

func TestHandleTurnCancelInjectionMarksPartial(t *testing.T) {
	handlers := approveEverythingHandlers()
	injections := NewInjectionManager()
	injections.MarkActive("s1")
	_ = injections.Enqueue(context.Background(), "s1", Injection{Kind: InjectionCancel})

	o := NewOrchestrator(handlers, injections, testLimits())
	result, err := o.HandleTurn(context.Background(), TurnInput{TurnID: "t1", SessionID: "s1", Mode: turn.ModeChat})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Partial || result.Reason != "cancelled" {
		t.Fatalf("expected cancelled partial result, got %+v", result)
	}
}
