package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basegraphhq/turnengine/internal/turn"
)

func TestArchiveWritesContextAndClaims(t *testing.T) {
	root := t.TempDir()
	a := NewArchive(root)

	doc := turn.New("turn-1", "session-1", turn.ModeChat)
	doc.CommitSection0(turn.Section0{ResolvedQuery: "cheapest laptop"})
	doc.CommitSection2(nil, "laptops under $500 from three retailers")
	doc.CommitSynthesis("The cheapest laptop found is $449.", nil)
	c, _ := turn.NewClaim("c1", "price is $449", "tool:price_search", turn.EvidenceTool, 0.9)
	doc.AppendExecution(turn.ExecutionEntry{Command: "search", Claims: []turn.Claim{c}})

	path, err := a.Write(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(root, "turn-1") {
		t.Fatalf("unexpected archive path: %s", path)
	}

	contextBytes, err := os.ReadFile(filepath.Join(path, "context.md"))
	if err != nil {
		t.Fatalf("expected context.md to exist: %v", err)
	}
	if !strings.Contains(string(contextBytes), "cheapest laptop") {
		t.Fatalf("expected context.md to contain the resolved query, got %s", contextBytes)
	}

	claimsBytes, err := os.ReadFile(filepath.Join(path, "claims.jsonl"))
	if err != nil {
		t.Fatalf("expected claims.jsonl to exist: %v", err)
	}
	if !strings.Contains(string(claimsBytes), "c1") {
		t.Fatalf("expected claims.jsonl to contain claim c1, got %s", claimsBytes)
	}

	if _, err := os.Stat(filepath.Join(path, "artifacts")); err != nil {
		t.Fatalf("expected artifacts directory to exist: %v", err)
	}
}
