package turn

import (
	"errors"
	"time"
)

var (
	ErrEmptyClaimText   = errors.New("claim text is required")
	ErrEmptyGoalList    = errors.New("plan must have at least one goal")
	ErrEmptyToolFamily  = errors.New("tool family name is required")
	ErrEmptyWorkflowID  = errors.New("workflow bundle id is required")
	ErrNoWorkflowSteps  = errors.New("workflow bundle must declare at least one step")
	ErrInvalidFailurePol = errors.New("invalid step failure policy")
)

// EvidenceKind classifies a Claim's source, used by the freshness/TTL policy.
type EvidenceKind string

const (
	EvidenceTool    EvidenceKind = "tool"
	EvidenceMemory  EvidenceKind = "memory"
	EvidenceContext EvidenceKind = "context"
)

// Claim is one fact extracted from a tool/workflow result or a §2 record, with enough
// provenance for Phase 6 to cite it and Phase 7 to check it.
type Claim struct {
	ID           string
	Text         string
	SourceRef    string
	EvidenceKind EvidenceKind
	Confidence   float64
	ProducedAt   time.Time
	Historical   bool
}

// NewClaim validates and constructs a Claim.
func NewClaim(id, text, sourceRef string, kind EvidenceKind, confidence float64) (Claim, error) {
	if text == "" {
		return Claim{}, ErrEmptyClaimText
	}
	return Claim{
		ID:           id,
		Text:         text,
		SourceRef:    sourceRef,
		EvidenceKind: kind,
		Confidence:   confidence,
		ProducedAt:   time.Now(),
	}, nil
}

// Goal is one unit of the StrategicPlan's decomposition.
type Goal struct {
	ID           string
	Description  string
	Priority     int
	DependsOn    []string
	SuccessScore float64 // not set by any phase; Phase 7 reads per-goal scores from ValidationChecks.GoalScores
}

// Workpad is the Planner's ephemeral scratch space; never persisted to memory.
type Workpad struct {
	Assumptions   []string
	Constraints   []string
	Risks         []string
	OpenQuestions []string
}

// StrategicPlan is §3: the Planner's output.
type StrategicPlan struct {
	Goals           []Goal
	Approach        string
	Route           Route
	SuccessCriteria []string
	Workpad         *Workpad
	Revision        int
	CriticVerdict   string // "PASS", "REVISE", "BLOCK", "" if critic disabled
}

// NewStrategicPlan validates and constructs a plan. Revision is assigned by
// Document.CommitPlan, not here.
func NewStrategicPlan(goals []Goal, approach string, route Route, criteria []string) (*StrategicPlan, error) {
	if len(goals) == 0 {
		return nil, ErrEmptyGoalList
	}
	return &StrategicPlan{
		Goals:           goals,
		Approach:        approach,
		Route:           route,
		SuccessCriteria: criteria,
	}, nil
}

// FailurePolicy governs what a WorkflowStep does when its tool call fails.
type FailurePolicy string

const (
	FailureAbort    FailurePolicy = "abort"
	FailureContinue FailurePolicy = "continue"
	FailureFallback FailurePolicy = "fallback-step"
)

// ToolFamilySpec is the abstract contract a tool family realizes: required inputs, an
// output schema, an error taxonomy, and a mutation flag enforced by the mode gate.
type ToolFamilySpec struct {
	Name          string
	Description   string
	InputSchema   any
	OutputSchema  any
	Mutating      bool
	ErrorTaxonomy []string
}

func NewToolFamilySpec(name string, mutating bool) (ToolFamilySpec, error) {
	if name == "" {
		return ToolFamilySpec{}, ErrEmptyToolFamily
	}
	return ToolFamilySpec{Name: name, Mutating: mutating}, nil
}

// WorkflowStep is one declarative step of a WorkflowBundle.
type WorkflowStep struct {
	ToolFamily   string
	ArgTemplate  map[string]string // value is a template referencing command slots/§0/§2/prior step outputs
	OnFailure    FailurePolicy
	FallbackStep string // step name to run instead, when OnFailure == FailureFallback
}

// WorkflowBundle is a declarative, file-loaded recipe the Workflow Engine interprets;
// it never contains executable code, only a trigger set and a step list.
type WorkflowBundle struct {
	ID              string
	Triggers        []string // literal actions, patterns with slots, or purpose/requirement matches
	Inputs          []string
	Steps           []WorkflowStep
	Outputs         []string
	SuccessCriteria []string
	Fallback        string
	Priority        int
}

// FindStep looks up a step by its tool family name, used to resolve a FallbackStep
// reference during workflow interpretation.
func (b *WorkflowBundle) FindStep(toolFamily string) (WorkflowStep, bool) {
	for _, s := range b.Steps {
		if s.ToolFamily == toolFamily {
			return s, true
		}
	}
	return WorkflowStep{}, false
}

func NewWorkflowBundle(id string, steps []WorkflowStep) (*WorkflowBundle, error) {
	if id == "" {
		return nil, ErrEmptyWorkflowID
	}
	if len(steps) == 0 {
		return nil, ErrNoWorkflowSteps
	}
	for _, s := range steps {
		switch s.OnFailure {
		case FailureAbort, FailureContinue, FailureFallback:
		default:
			return nil, ErrInvalidFailurePol
		}
	}
	return &WorkflowBundle{ID: id, Steps: steps}, nil
}
