// Package recipe holds the system prompt template per phase/role, together with the
// role name, schema and token budget registered for it. Recipes are loaded once at
// startup and are immutable for the process lifetime. Phase handlers read only the
// rendered prompt and PlanCriticEnabled from a recipe: each handler builds its own
// structured-output schema and sets its own MaxTokens, and Recipe.Schema and
// Recipe.MaxTokens are not read by the engine package.
package recipe

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/basegraphhq/turnengine/core/config"
)

// Recipe is one phase/role's prompt + schema + budget bundle.
type Recipe struct {
	Name              string
	Role              string // key into config.LLMConfig.Roles
	SystemPromptTmpl  *template.Template
	Schema            any
	MaxTokens         int
	PlanCriticEnabled bool
}

// Loader holds every loaded Recipe, keyed by phase name.
type Loader struct {
	recipes map[string]*Recipe
}

// NewLoader loads every *.tmpl file under dir as a recipe named after its basename
// (minus extension), pairing it with the schema/role/budget registered via Register.
// Directory-scan-at-startup mirrors the teacher's tools/linters plugin discovery.
func NewLoader(dir string) (*Loader, error) {
	l := &Loader{recipes: make(map[string]*Recipe)}

	if dir == "" {
		return l, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("reading recipe dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".tmpl" {
			continue
		}
		name := e.Name()[:len(e.Name())-len(".tmpl")]
		path := filepath.Join(dir, e.Name())

		tmpl, err := template.New(name).ParseFiles(path)
		if err != nil {
			return nil, fmt.Errorf("parsing recipe %s: %w", name, err)
		}
		l.recipes[name] = &Recipe{Name: name, SystemPromptTmpl: tmpl}
	}

	return l, nil
}

// Register attaches a schema/role/budget to a named recipe, or creates one with a
// fallback inline prompt template if no .tmpl file was found on disk (useful for
// embedding default prompts directly in code for phases that don't need customization).
func (l *Loader) Register(name, role string, schema any, maxTokens int, fallbackPrompt string) error {
	r, ok := l.recipes[name]
	if !ok {
		tmpl, err := template.New(name).Parse(fallbackPrompt)
		if err != nil {
			return fmt.Errorf("parsing fallback prompt for %s: %w", name, err)
		}
		r = &Recipe{Name: name, SystemPromptTmpl: tmpl}
		l.recipes[name] = r
	}
	r.Role = role
	r.Schema = schema
	r.MaxTokens = maxTokens
	return nil
}

// EnablePlanCritic opts a recipe into the optional Plan Critic pass (off by default).
func (l *Loader) EnablePlanCritic(name string) {
	if r, ok := l.recipes[name]; ok {
		r.PlanCriticEnabled = true
	}
}

// Render executes the named recipe's prompt template against vars.
func (l *Loader) Render(name string, vars any) (string, error) {
	r, ok := l.recipes[name]
	if !ok {
		return "", fmt.Errorf("unknown recipe: %s", name)
	}
	var buf bytes.Buffer
	if err := r.SystemPromptTmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("rendering recipe %s: %w", name, err)
	}
	return buf.String(), nil
}

func (l *Loader) Recipe(name string) (*Recipe, bool) {
	r, ok := l.recipes[name]
	return r, ok
}

// RoleConfig resolves a recipe's role against the LLM config, falling back to a
// deterministic, low-temperature default if the role is unconfigured.
func RoleConfig(cfg config.LLMConfig, role string) config.RoleConfig {
	if rc, ok := cfg.Roles[role]; ok {
		return rc
	}
	return config.RoleConfig{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0, MaxTokens: 1000}
}
