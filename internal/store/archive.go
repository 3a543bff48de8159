package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/basegraphhq/turnengine/internal/turn"
)

// Archive writes a completed turn's on-disk artifacts: a human-readable context.md
// (§0/§2/§6 summary), a claims.jsonl (one JSON claim per line, for grep-friendly
// inspection), and an artifacts/ directory for anything a tool result attaches.
// Directory layout and MkdirAll/WriteFile conventions adapted from the teacher's
// TaskRunner repo-root scoping.
type Archive struct {
	root string
}

func NewArchive(root string) *Archive {
	return &Archive{root: root}
}

// Write persists doc under root/<turn_id>/ and returns that path for the §8 record.
func (a *Archive) Write(doc *turn.Document) (string, error) {
	turnDir := filepath.Join(a.root, doc.TurnID)
	if err := os.MkdirAll(filepath.Join(turnDir, "artifacts"), 0o755); err != nil {
		return "", fmt.Errorf("creating turn archive dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(turnDir, "context.md"), []byte(renderContextMD(doc)), 0o644); err != nil {
		return "", fmt.Errorf("writing context.md: %w", err)
	}

	if err := writeClaimsJSONL(filepath.Join(turnDir, "claims.jsonl"), doc.Claims()); err != nil {
		return "", err
	}

	return turnDir, nil
}

func renderContextMD(doc *turn.Document) string {
	return fmt.Sprintf(
		"# Turn %s\n\nSession: %s\n\n## Query\n%s\n\n## Context Summary\n%s\n\n## Response\n%s\n",
		doc.TurnID, doc.SessionID, doc.S0.ResolvedQuery, doc.S2.Summary, doc.S6.Draft,
	)
}

func writeClaimsJSONL(path string, claims []turn.Claim) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating claims.jsonl: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, c := range claims {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("writing claim %s: %w", c.ID, err)
		}
	}
	return nil
}
