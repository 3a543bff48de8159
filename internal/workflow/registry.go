// Package workflow implements the Workflow Registry (declarative bundle discovery by
// trigger) and the Workflow Engine (a step-by-step interpreter for a matched bundle).
// Bundles are data, never code; the discovery pattern is adapted from the teacher's
// tools/linters analyzer directory layout, generalized from a Go-plugin scan into a
// workflow-bundle-file scan.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/basegraphhq/turnengine/internal/turn"
)

// Registry holds every loaded WorkflowBundle, indexed by trigger for fast lookup from
// the Coordinator's step loop.
type Registry struct {
	bundles     map[string]*turn.WorkflowBundle
	byTrigger   map[string][]*turn.WorkflowBundle
}

func NewRegistry() *Registry {
	return &Registry{
		bundles:   make(map[string]*turn.WorkflowBundle),
		byTrigger: make(map[string][]*turn.WorkflowBundle),
	}
}

// LoadDir scans dir for *.json bundle files and registers each one. A missing directory
// is not an error — the registry simply starts empty, mirroring the recipe loader's
// tolerance for an absent prompt directory.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading workflow dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading workflow bundle %s: %w", e.Name(), err)
		}
		var def bundleDef
		if err := json.Unmarshal(raw, &def); err != nil {
			return fmt.Errorf("parsing workflow bundle %s: %w", e.Name(), err)
		}
		bundle, err := def.toBundle()
		if err != nil {
			return fmt.Errorf("validating workflow bundle %s: %w", e.Name(), err)
		}
		if err := r.Register(bundle); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a bundle built programmatically (tests, or bundles assembled from
// config rather than loaded off disk).
func (r *Registry) Register(bundle *turn.WorkflowBundle) error {
	if _, exists := r.bundles[bundle.ID]; exists {
		return fmt.Errorf("workflow bundle already registered: %s", bundle.ID)
	}
	r.bundles[bundle.ID] = bundle
	for _, trig := range bundle.Triggers {
		key := normalizeTrigger(trig)
		r.byTrigger[key] = append(r.byTrigger[key], bundle)
	}
	return nil
}

// Match finds bundles whose trigger exactly matches action, highest priority first. Per
// the workflow-vs-tool boundary decision, this is a single direct lookup: no fallback
// chaining between workflows, no fuzzy matching.
func (r *Registry) Match(action string) []*turn.WorkflowBundle {
	matches := r.byTrigger[normalizeTrigger(action)]
	out := make([]*turn.WorkflowBundle, len(matches))
	copy(out, matches)
	sortByPriorityDesc(out)
	return out
}

func (r *Registry) Get(id string) (*turn.WorkflowBundle, bool) {
	b, ok := r.bundles[id]
	return b, ok
}

func normalizeTrigger(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sortByPriorityDesc(bundles []*turn.WorkflowBundle) {
	for i := 1; i < len(bundles); i++ {
		for j := i; j > 0 && bundles[j].Priority > bundles[j-1].Priority; j-- {
			bundles[j], bundles[j-1] = bundles[j-1], bundles[j]
		}
	}
}

// bundleDef is the on-disk JSON shape; it carries raw string failure policies that need
// validating before becoming a turn.WorkflowBundle.
type bundleDef struct {
	ID              string         `json:"id"`
	Triggers        []string       `json:"triggers"`
	Inputs          []string       `json:"inputs"`
	Steps           []stepDef      `json:"steps"`
	Outputs         []string       `json:"outputs"`
	SuccessCriteria []string       `json:"success_criteria"`
	Fallback        string         `json:"fallback"`
	Priority        int            `json:"priority"`
}

type stepDef struct {
	ToolFamily   string            `json:"tool_family"`
	ArgTemplate  map[string]string `json:"arg_template"`
	OnFailure    string            `json:"on_failure"`
	FallbackStep string            `json:"fallback_step"`
}

func (d bundleDef) toBundle() (*turn.WorkflowBundle, error) {
	steps := make([]turn.WorkflowStep, 0, len(d.Steps))
	for _, s := range d.Steps {
		steps = append(steps, turn.WorkflowStep{
			ToolFamily:   s.ToolFamily,
			ArgTemplate:  s.ArgTemplate,
			OnFailure:    turn.FailurePolicy(s.OnFailure),
			FallbackStep: s.FallbackStep,
		})
	}
	bundle, err := turn.NewWorkflowBundle(d.ID, steps)
	if err != nil {
		return nil, err
	}
	bundle.Triggers = d.Triggers
	bundle.Inputs = d.Inputs
	bundle.Outputs = d.Outputs
	bundle.SuccessCriteria = d.SuccessCriteria
	bundle.Fallback = d.Fallback
	bundle.Priority = d.Priority
	return bundle, nil
}
