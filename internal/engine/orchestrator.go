package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/basegraphhq/turnengine/core/config"
	"github.com/basegraphhq/turnengine/internal/obslog"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// TurnError distinguishes transport-level failures a caller may retry from fatal
// failures that should surface to the user, mirroring the teacher's EngagementError.
type TurnError struct {
	Err       error
	Retryable bool
}

func (e *TurnError) Error() string { return e.Err.Error() }
func (e *TurnError) Unwrap() error { return e.Err }

func NewRetryableError(err error) *TurnError { return &TurnError{Err: err, Retryable: true} }
func NewFatalError(err error) *TurnError     { return &TurnError{Err: err, Retryable: false} }

var (
	ErrClarificationNeeded = errors.New("turn halted: clarification required")
	ErrBudgetUnresolvable  = errors.New("turn halted: budget overrun could not be resolved by compression")
	ErrEmptyPhaseOutput    = errors.New("turn halted: phase produced empty or ill-formed output")
)

// TurnInput starts one turn.
type TurnInput struct {
	TurnID    string
	SessionID string
	Mode      turn.Mode
	Command   string
}

// TurnResult is what HandleTurn returns: either a completed document, or a partial one
// marked as such after a cancel or an exhausted validation loop.
type TurnResult struct {
	Document *turn.Document
	Partial  bool
	Reason   string
}

// PhaseHandlers is the set of phase implementations the Orchestrator sequences. Each
// field is a narrow function type rather than an interface, matching the teacher's
// orchestrator composing single-purpose collaborators (planner, contextBuilder,
// actionValidator) rather than one fat interface.
type PhaseHandlers struct {
	QueryAnalyzer        func(ctx context.Context, doc *turn.Document) error
	QueryAnalyzerValidate func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error)
	ContextRetrieve      func(ctx context.Context, doc *turn.Document) error
	ContextSynthesize    func(ctx context.Context, doc *turn.Document, hints []string) error
	ContextValidate      func(ctx context.Context, doc *turn.Document) (ValidatorVerdict, error)
	Plan                 func(ctx context.Context, doc *turn.Document, suggestedFixes []string) error
	Execute               func(ctx context.Context, doc *turn.Document) error
	Synthesize            func(ctx context.Context, doc *turn.Document, hints []string) error
	Validate              func(ctx context.Context, doc *turn.Document) (ValidationOutcome, error)
	Save                  func(ctx context.Context, doc *turn.Document) error
}

// ValidatorVerdict is Phase 1.5/2.5's decision.
type ValidatorVerdict struct {
	Decision turn.CheckDecision
	Hints    []string
}

// ValidationOutcome is Phase 7's decision, plus its confidence score for best-seen
// tracking and any suggested fixes for a RETRY.
type ValidationOutcome struct {
	Decision       turn.Decision
	Confidence     float64
	Hints          []string
	SuggestedFixes []string
}

// Orchestrator sequences the nine phases per turn, owning all loop/budget policy. No
// LLM prompting lives here — it only calls phase handlers.
type Orchestrator struct {
	handlers   PhaseHandlers
	injections *InjectionManager
	limits     config.LoopLimits
	progress   func(ctx context.Context, sessionID, phase, status string)
}

func NewOrchestrator(handlers PhaseHandlers, injections *InjectionManager, limits config.LoopLimits) *Orchestrator {
	return &Orchestrator{handlers: handlers, injections: injections, limits: limits}
}

// WithProgress attaches a phase-checkpoint callback, mirroring the teacher's
// TaskRunner.emitStatus status-stream writes. Optional: HandleTurn is a no-op toward
// progress reporting when this is never set.
func (o *Orchestrator) WithProgress(fn func(ctx context.Context, sessionID, phase, status string)) *Orchestrator {
	o.progress = fn
	return o
}

func (o *Orchestrator) emit(ctx context.Context, sessionID, phase, status string) {
	if o.progress != nil {
		o.progress(ctx, sessionID, phase, status)
	}
}

// HandleTurn runs the full phase sequence for one turn.
func (o *Orchestrator) HandleTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	ctx = obslog.WithFields(ctx, obslog.Fields{
		TurnID:    obslog.Ptr(input.TurnID),
		SessionID: obslog.Ptr(input.SessionID),
		Component: "turnengine.engine.orchestrator",
	})
	slog.InfoContext(ctx, "handling turn", "mode", input.Mode)

	o.injections.MarkActive(input.SessionID)
	defer o.injections.MarkInactive(input.SessionID)

	doc := turn.New(input.TurnID, input.SessionID, input.Mode)
	doc.CommitSection0(turn.Section0{Mode: input.Mode, RawQuery: input.Command})
	o.emit(ctx, input.SessionID, "query_analyzer", "started")

	if err := o.runQueryAnalysis(ctx, doc); err != nil {
		if errors.Is(err, ErrClarificationNeeded) {
			return &TurnResult{Document: doc, Partial: true, Reason: "clarification_needed"}, nil
		}
		return nil, err
	}

	if err := o.checkpoint(ctx, input.SessionID, doc); err != nil {
		return &TurnResult{Document: doc, Partial: true, Reason: "cancelled"}, nil
	}

	o.emit(ctx, input.SessionID, "context", "started")
	if err := o.runContextGathering(ctx, doc); err != nil {
		return nil, err
	}

	o.emit(ctx, input.SessionID, "planner", "started")
	best, bestConfidence, exhausted, err := o.runValidationLoop(ctx, input.SessionID, doc)
	if err != nil {
		return nil, err
	}

	o.emit(ctx, input.SessionID, "save", "started")
	if err := o.handlers.Save(ctx, doc); err != nil {
		o.emit(ctx, input.SessionID, "save", "failed")
		return nil, NewRetryableError(fmt.Errorf("phase 8 save: %w", err))
	}
	o.emit(ctx, input.SessionID, "save", "completed")

	slog.InfoContext(ctx, "turn completed", "exhausted", exhausted, "best_confidence", bestConfidence)
	_ = best
	return &TurnResult{Document: doc, Partial: exhausted, Reason: reasonFor(exhausted)}, nil
}

func reasonFor(exhausted bool) string {
	if exhausted {
		return "validation_exhausted_best_seen"
	}
	return ""
}

// runQueryAnalysis runs Phase 1 then 1.5, with at most one retry of Phase 1 on
// fail-retry, and an immediate clarification short-circuit on fail-clarify.
func (o *Orchestrator) runQueryAnalysis(ctx context.Context, doc *turn.Document) error {
	for attempt := 0; attempt <= o.limits.MaxQueryAnalyzerRetries; attempt++ {
		if err := o.handlers.QueryAnalyzer(ctx, doc); err != nil {
			return NewRetryableError(fmt.Errorf("phase 1 query analyzer: %w", err))
		}
		verdict, err := o.handlers.QueryAnalyzerValidate(ctx, doc)
		if err != nil {
			return NewRetryableError(fmt.Errorf("phase 1.5 validator: %w", err))
		}
		switch verdict.Decision {
		case turn.CheckApprove:
			return nil
		case turn.CheckClarify:
			return ErrClarificationNeeded
		case turn.CheckRetry:
			continue
		default:
			return fmt.Errorf("%w: phase 1.5 returned %s", ErrEmptyPhaseOutput, verdict.Decision)
		}
	}
	return ErrClarificationNeeded
}

// runContextGathering runs Phase 2.1 once, then 2.2/2.5 up to MaxContextRetries+1 times
// (a first pass plus MaxContextRetries retries).
func (o *Orchestrator) runContextGathering(ctx context.Context, doc *turn.Document) error {
	if err := o.handlers.ContextRetrieve(ctx, doc); err != nil {
		return NewRetryableError(fmt.Errorf("phase 2.1 context retrieval: %w", err))
	}

	var hints []string
	for attempt := 0; attempt <= o.limits.MaxContextRetries; attempt++ {
		if err := o.handlers.ContextSynthesize(ctx, doc, hints); err != nil {
			return NewRetryableError(fmt.Errorf("phase 2.2 context synthesis: %w", err))
		}
		verdict, err := o.handlers.ContextValidate(ctx, doc)
		if err != nil {
			return NewRetryableError(fmt.Errorf("phase 2.5 context validator: %w", err))
		}
		if verdict.Decision == turn.CheckApprove {
			doc.CommitSection2(doc.S2.Records, doc.S2.StagedSummary)
			return nil
		}
		hints = verdict.Hints
	}
	// Exhausted retries: proceed with the last staged §2 rather than halting, committing
	// it now since no further 2.5 pass will.
	doc.CommitSection2(doc.S2.Records, doc.S2.StagedSummary)
	return nil
}

// runValidationLoop runs Phase 3 → inner loop → Phase 6 → Phase 7, bounded by REVISE≤2,
// RETRY≤1, combined≤3, tracking the highest-confidence attempt seen so far.
func (o *Orchestrator) runValidationLoop(ctx context.Context, sessionID string, doc *turn.Document) (ValidationOutcome, float64, bool, error) {
	var (
		revises, retries, combined int
		bestConfidence              float64
		best                        ValidationOutcome
		bestDraft                   turn.Section6
		suggestedFixes              []string
		synthesisHints              []string
	)

	// restoreBest writes the highest-confidence draft seen back into §6 before a
	// non-APPROVE exit, so Save persists the best-seen response rather than whatever the
	// last (possibly worse) attempt left behind.
	restoreBest := func() (ValidationOutcome, float64, bool, error) {
		if bestDraft.Draft != "" {
			doc.CommitSynthesis(bestDraft.Draft, bestDraft.SourceMap)
		}
		return best, bestConfidence, true, nil
	}

	replan := true
	skipExecute := false
	for combined < o.limits.MaxCombinedValidation {
		combined++

		if replan {
			if err := o.handlers.Plan(ctx, doc, suggestedFixes); err != nil {
				return ValidationOutcome{}, 0, false, NewRetryableError(fmt.Errorf("phase 3 planner: %w", err))
			}
			replan = false
			skipExecute = false
		}

		if err := o.checkpoint(ctx, sessionID, doc); err != nil {
			return restoreBest()
		}

		if !skipExecute {
			if err := o.handlers.Execute(ctx, doc); err != nil {
				return ValidationOutcome{}, 0, false, NewRetryableError(fmt.Errorf("executor/coordinator loop: %w", err))
			}
		}

		if err := o.handlers.Synthesize(ctx, doc, synthesisHints); err != nil {
			return ValidationOutcome{}, 0, false, NewRetryableError(fmt.Errorf("phase 6 synthesis: %w", err))
		}

		outcome, err := o.handlers.Validate(ctx, doc)
		if err != nil {
			return ValidationOutcome{}, 0, false, NewRetryableError(fmt.Errorf("phase 7 validation: %w", err))
		}

		if outcome.Confidence > bestConfidence {
			best = outcome
			bestConfidence = outcome.Confidence
			bestDraft = doc.Section6Snapshot()
		}

		switch outcome.Decision {
		case turn.DecisionApprove:
			o.emit(ctx, sessionID, "validate", "approved")
			return outcome, outcome.Confidence, false, nil
		case turn.DecisionRevise:
			o.emit(ctx, sessionID, "validate", "revise")
			revises++
			if revises > o.limits.MaxRevise {
				return restoreBest()
			}
			synthesisHints = outcome.Hints
			// REVISE loops back to Synthesis only; the plan and execution log stand.
			skipExecute = true
		case turn.DecisionRetry:
			o.emit(ctx, sessionID, "validate", "retry")
			retries++
			if retries > o.limits.MaxRetry {
				return restoreBest()
			}
			doc.MarkRetryBoundary(fmt.Sprintf("phase 7 retry: %s", strings.Join(outcome.Hints, "; ")))
			suggestedFixes = outcome.SuggestedFixes
			replan = true
		case turn.DecisionFail:
			return restoreBest()
		default:
			return ValidationOutcome{}, 0, false, fmt.Errorf("%w: phase 7 returned %s", ErrEmptyPhaseOutput, outcome.Decision)
		}
	}

	return restoreBest()
}

// checkpoint drains pending injections for sessionID. A CANCEL returns a sentinel
// error the caller treats as "break to best-seen, mark partial"; a REDIRECT is left on
// doc for the next Executor iteration to pick up as priority context and does not
// interrupt the current phase sequence.
func (o *Orchestrator) checkpoint(ctx context.Context, sessionID string, doc *turn.Document) error {
	for _, inj := range o.injections.Drain(sessionID) {
		switch inj.Kind {
		case InjectionCancel:
			return errors.New("cancelled")
		case InjectionRedirect, InjectionAddContext:
			doc.QueueInjection(inj.Kind == InjectionRedirect, inj.Payload)
		}
	}
	return nil
}
