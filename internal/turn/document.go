// Package turn defines the ContextDocument: the single, append-only structured document
// that carries state across all nine phases of one turn. It generalizes the narrow
// ContextDocumentProvider concept from the teacher's job-execution pipeline into the
// full §0-§8 structure the turn engine needs.
package turn

import (
	"fmt"
	"sync"
	"time"
)

// Purpose is the closed classification set a query resolves to in §0.
type Purpose string

const (
	PurposeTransactionalShopping Purpose = "transactional-shopping"
	PurposeInformational         Purpose = "informational"
	PurposeNavigational          Purpose = "navigational"
	PurposeCode                  Purpose = "code"
	PurposeRecall                Purpose = "recall"
	PurposeClarification         Purpose = "clarification"
	PurposeRetry                 Purpose = "retry"
	PurposeMetadata              Purpose = "metadata"
	PurposeTrivial               Purpose = "trivial"
)

// Mode gates mutating tool access for the whole turn (§4.12).
type Mode string

const (
	ModeChat Mode = "chat"
	ModeCode Mode = "code"
)

// Route is the Planner's choice of how to satisfy the query (§4.5).
type Route string

const (
	RouteExecutor   Route = "executor"
	RouteSynthesis  Route = "synthesis"
	RouteClarify    Route = "clarify"
	RouteBrainstorm Route = "brainstorm"
)

// Decision is the Phase 7 validation outcome.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionRevise  Decision = "REVISE"
	DecisionRetry   Decision = "RETRY"
	DecisionFail    Decision = "FAIL"
)

// CheckDecision is the Phase 1.5 / 2.5 validator verdict — a narrower three-way check
// distinct from Phase 7's four-way Decision.
type CheckDecision string

const (
	CheckApprove CheckDecision = "pass"
	CheckRetry   CheckDecision = "retry"
	CheckClarify CheckDecision = "clarify"
)

// Status is the final disposition of a turn, persisted in §8.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPartial  Status = "partial" // cancelled or blocked with best-seen response
	StatusFailed   Status = "failed"
)

// Section0 is written by Phase 1 (and revised in place only by a bounded Phase 1.5
// bounce-back re-run of Phase 1; never by any later phase).
type Section0 struct {
	RawQuery         string
	ResolvedQuery    string
	Purpose          Purpose
	DataRequirements map[string]any
	ActionVerbs      []string
	IsFollowup       bool
	Mode             Mode
}

// Section1 is the Query Analyzer Validator's verdict on §0.
type Section1 struct {
	Decision string // "pass", "retry", "clarify"
	Issues   []string
	Gaps     []string
}

// Section2 is the committed, synthesized context (only written once 2.5 approves it).
// StagedSummary holds 2.2's latest draft while 2.5 is still checking it; Summary stays
// empty until CommitSection2 finalizes it.
type Section2 struct {
	Committed     bool
	Summary       string
	StagedSummary string
	Records       []Record
}

// Record is one piece of context staged during Phase 2.1 and compacted in 2.2.
type Record struct {
	SourceKind   string // set by Phase 2.1 to the claim's evidence kind ("tool", "memory", "context"); the producing Source's name is not kept
	ID           string
	Text         string
	Historical   bool // past its freshness TTL; cannot be cited as current in §6
	RetrievedAt  time.Time
	EvidenceKind string // the claim's evidence kind: "tool", "memory", "context"
}

// Section3 is the StrategicPlan (§3).
type Section3 struct {
	Plan *StrategicPlan
}

// Section4 is the append-only execution log (§4). Never truncated, only appended to;
// a RETRY writes a RevisionMarker entry and continues appending.
type Section4 struct {
	Entries []ExecutionEntry
}

// ExecutionEntry is one iteration of the Executor/Coordinator inner loop.
type ExecutionEntry struct {
	Iteration      int
	Command        string // natural-language Executor command
	WorkflowOrTool string // which workflow bundle or tool instance handled it
	RawResult      any
	Claims         []Claim
	Status         string // "ok", "tool_failure", "blocked"
	RevisionMarker bool
}

// Section6 is the synthesized draft response and its source map.
type Section6 struct {
	Draft     string
	SourceMap map[string]string // sentence/fact id -> claim id
}

// Section7 accumulates one sub-block per validation attempt; never overwritten.
type Section7 struct {
	Attempts []ValidationAttempt
}

type ValidationAttempt struct {
	Decision        Decision
	Confidence      float64
	ClaimsSupported bool
	NoHallucination bool
	QueryAddressed  bool
	CoherentFormat  bool
	Issues          []string
	RevisionHints   []string
	SuggestedFixes  []string
	ReasonTags      []string
}

// Section8 is the save record.
type Section8 struct {
	TurnID      string
	SavedAt     time.Time
	ArchivePath string
	IndexKeys   []string
}

// Document is the ContextDocument: the sole state carrier across phases. All mutation
// goes through its methods so append-only and commit-once invariants hold even under
// concurrent checkpoint reads from the Injection Manager.
type Document struct {
	mu sync.Mutex

	TurnID    string
	SessionID string
	StartedAt time.Time

	S0 Section0
	S1 Section1
	S2 Section2
	S3 Section3
	S4 Section4
	S6 Section6
	S7 Section7
	S8 Section8

	PlanRevision int
	Status       Status

	// PendingRedirects/PendingContext hold injected mid-turn content the next Executor
	// iteration must treat as priority input; drained (not cleared automatically) by
	// the phase handler that consumes them.
	PendingRedirects []string
	PendingContext   []string
}

// QueueInjection stores a mid-turn REDIRECT or ADD_CONTEXT payload for the next
// Executor iteration to pick up.
func (d *Document) QueueInjection(isRedirect bool, payload string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if isRedirect {
		d.PendingRedirects = append(d.PendingRedirects, payload)
	} else {
		d.PendingContext = append(d.PendingContext, payload)
	}
}

// DrainInjections returns and clears queued redirect/context payloads.
func (d *Document) DrainInjections() (redirects, context []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	redirects, context = d.PendingRedirects, d.PendingContext
	d.PendingRedirects, d.PendingContext = nil, nil
	return
}

// New creates a fresh ContextDocument for one turn.
func New(turnID, sessionID string, mode Mode) *Document {
	return &Document{
		TurnID:    turnID,
		SessionID: sessionID,
		StartedAt: time.Now(),
		S0:        Section0{Mode: mode},
	}
}

// CommitSection0 writes §0. Allowed more than once only to support the Phase 1.5
// "retry" bounce-back to Phase 1; every other phase's Commit* is write-once.
func (d *Document) CommitSection0(s Section0) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S0 = s
}

func (d *Document) CommitSection1(s Section1) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S1 = s
}

// CommitSection2 commits §2; called only from the orchestrator's 2.5 path once the
// validator verdict is "pass", never by 2.2 itself, so a bounced-back "retry" verdict
// never leaves a half-approved §2 behind for a concurrent checkpoint read to see.
func (d *Document) CommitSection2(records []Record, summary string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S2 = Section2{Committed: true, Summary: summary, Records: records}
}

// SetStagedRecords stores Phase 2.1's retrieval output for Phase 2.2 to read; Committed
// stays false until CommitSection2 finalizes it, so a crash between the two phases never
// looks like an approved §2.
func (d *Document) SetStagedRecords(records []Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S2.Records = records
}

// StageSection2Summary records 2.2's draft summary for 2.5 to evaluate, without
// committing it. Called on every 2.2 pass, including ones that are later bounced back.
func (d *Document) StageSection2Summary(summary string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S2.StagedSummary = summary
}

// CommitPlan writes §3 and bumps the plan revision counter, so later phases can detect
// a replan occurred.
func (d *Document) CommitPlan(p *StrategicPlan) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.PlanRevision++
	p.Revision = d.PlanRevision
	d.S3 = Section3{Plan: p}
}

// AppendExecution appends one execution-log entry. §4 is never truncated; the entry's
// Iteration field is assigned sequentially regardless of retries.
func (d *Document) AppendExecution(e ExecutionEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e.Iteration = len(d.S4.Entries) + 1
	d.S4.Entries = append(d.S4.Entries, e)
}

// MarkRetryBoundary appends a revision marker so the execution log visibly records a
// Phase-7 RETRY loop-back without discarding any prior entries.
func (d *Document) MarkRetryBoundary(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S4.Entries = append(d.S4.Entries, ExecutionEntry{
		Iteration:      len(d.S4.Entries) + 1,
		Command:        fmt.Sprintf("retry boundary: %s", reason),
		RevisionMarker: true,
		Status:         "ok",
	})
}

func (d *Document) CommitSynthesis(draft string, sourceMap map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S6 = Section6{Draft: draft, SourceMap: sourceMap}
}

// Section6Snapshot returns the current §6 draft/source map, used to capture the
// best-seen response before a later, lower-confidence attempt overwrites it.
func (d *Document) Section6Snapshot() Section6 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.S6
}

// AppendValidationAttempt accumulates a new §7 sub-block; prior attempts are preserved.
func (d *Document) AppendValidationAttempt(a ValidationAttempt) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S7.Attempts = append(d.S7.Attempts, a)
}

func (d *Document) CommitSave(s Section8, status Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.S8 = s
	d.Status = status
}

// Claims flattens every claim recorded across the execution log, used by Phase 6/7 to
// check claim support without re-walking entries.
func (d *Document) Claims() []Claim {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Claim
	for _, e := range d.S4.Entries {
		out = append(out, e.Claims...)
	}
	return out
}

// LastValidation returns the most recent §7 attempt, or nil if none yet.
func (d *Document) LastValidation() *ValidationAttempt {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.S7.Attempts) == 0 {
		return nil
	}
	last := d.S7.Attempts[len(d.S7.Attempts)-1]
	return &last
}
