package engine

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/internal/llm"
	"github.com/basegraphhq/turnengine/internal/recipe"
	"github.com/basegraphhq/turnengine/internal/turn"
)

type goalOutput struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	DependsOn   []string `json:"depends_on"`
}

type planOutput struct {
	Goals           []goalOutput `json:"goals"`
	Approach        string       `json:"approach"`
	Route           string       `json:"route" jsonschema:"enum=executor,enum=synthesis,enum=clarify,enum=brainstorm"`
	SuccessCriteria []string     `json:"success_criteria"`
	Assumptions     []string     `json:"assumptions"`
	Constraints     []string     `json:"constraints"`
	Risks           []string     `json:"risks"`
	OpenQuestions   []string     `json:"open_questions"`
}

type planCriticOutput struct {
	Verdict string `json:"verdict" jsonschema:"enum=PASS,enum=REVISE,enum=BLOCK"`
	Notes   string `json:"notes"`
}

// Planner builds §3: a single structured call decomposing §0/§2 into goals, a route,
// and an ephemeral workpad, with an optional read-only critic pass. Unlike the
// teacher's Planner, this phase never calls tools itself — tool use is the
// Executor/Coordinator's job — so it is grounded on the structured-client role
// separation in common/llm rather than the teacher's ChatWithTools loop.
type Planner struct {
	client llm.Client
	loader *recipe.Loader
}

func NewPlanner(client llm.Client, loader *recipe.Loader) *Planner {
	return &Planner{client: client, loader: loader}
}

// Plan is Phase 3's handler. suggestedFixes carries Phase 7's RETRY feedback on a
// replan; it is empty on the first pass through the validation loop.
func (p *Planner) Plan(ctx context.Context, doc *turn.Document, suggestedFixes []string) error {
	prompt, err := p.loader.Render("planner", map[string]any{
		"resolved_query":  doc.S0.ResolvedQuery,
		"purpose":         doc.S0.Purpose,
		"summary":         doc.S2.Summary,
		"suggested_fixes": suggestedFixes,
		"revision":        doc.PlanRevision,
	})
	if err != nil {
		return fmt.Errorf("rendering planner prompt: %w", err)
	}

	var out planOutput
	if _, err := p.client.Chat(ctx, llm.Request{
		SystemPrompt: prompt,
		UserPrompt:   doc.S0.ResolvedQuery,
		SchemaName:   "planner",
		Schema:       llm.GenerateSchema[planOutput](),
		MaxTokens:    2000,
		Temperature:  llm.Temp(0.3),
	}, &out); err != nil {
		return fmt.Errorf("phase 3 planner chat: %w", err)
	}

	if len(out.Goals) == 0 {
		return fmt.Errorf("%w: planner returned no goals", ErrEmptyPhaseOutput)
	}

	goals := make([]turn.Goal, len(out.Goals))
	for i, g := range out.Goals {
		goals[i] = turn.Goal{ID: g.ID, Description: g.Description, Priority: g.Priority, DependsOn: g.DependsOn}
	}

	plan, err := turn.NewStrategicPlan(goals, out.Approach, turn.Route(out.Route), out.SuccessCriteria)
	if err != nil {
		return fmt.Errorf("constructing plan: %w", err)
	}
	plan.Workpad = &turn.Workpad{
		Assumptions:   out.Assumptions,
		Constraints:   out.Constraints,
		Risks:         out.Risks,
		OpenQuestions: out.OpenQuestions,
	}

	if r, ok := p.loader.Recipe("planner"); ok && r.PlanCriticEnabled {
		verdict, err := p.critique(ctx, doc, plan)
		if err != nil {
			return fmt.Errorf("plan critic: %w", err)
		}
		plan.CriticVerdict = verdict
	}

	doc.CommitPlan(plan)
	return nil
}

func (p *Planner) critique(ctx context.Context, doc *turn.Document, plan *turn.StrategicPlan) (string, error) {
	prompt, err := p.loader.Render("plan_critic", map[string]any{
		"resolved_query": doc.S0.ResolvedQuery,
		"approach":       plan.Approach,
		"goal_count":     len(plan.Goals),
	})
	if err != nil {
		return "", err
	}

	var out planCriticOutput
	if _, err := p.client.Chat(ctx, llm.Request{
		SystemPrompt: prompt,
		UserPrompt:   plan.Approach,
		SchemaName:   "plan_critic",
		Schema:       llm.GenerateSchema[planCriticOutput](),
		MaxTokens:    300,
		Temperature:  llm.Temp(0),
	}, &out); err != nil {
		return "", err
	}
	return out.Verdict, nil
}
