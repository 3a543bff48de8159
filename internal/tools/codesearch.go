package tools

import (
	"context"
	"fmt"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/basegraphhq/turnengine/internal/turn"
)

// CodeGraphConfig mirrors the teacher's arangodb.Config shape.
type CodeGraphConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

func (c CodeGraphConfig) validate() error {
	if c.URL == "" {
		return fmt.Errorf("codegraph url is required")
	}
	if c.Database == "" {
		return fmt.Errorf("codegraph database name is required")
	}
	return nil
}

// codeSearchTool is the non-mutating "code_search" family: symbol lookup and bounded
// graph traversal over a codebase indexed into ArangoDB, adapted from the teacher's
// explore-agent read path (GetCallers/GetCallees/SearchSymbols).
type codeSearchTool struct {
	db arangodb.Database
}

// NewCodeSearchTool opens a connection and resolves the target database; callers invoke
// this once at startup and register the result with the Tool Registry.
func NewCodeSearchTool(ctx context.Context, cfg CodeGraphConfig) (Instance, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("codegraph config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))
	if err := conn.SetAuthentication(connection.NewBasicAuth(cfg.Username, cfg.Password)); err != nil {
		return nil, fmt.Errorf("codegraph auth: %w", err)
	}

	client := arangodb.NewClient(conn)
	db, err := client.GetDatabase(ctx, cfg.Database, nil)
	if err != nil {
		return nil, fmt.Errorf("codegraph get database: %w", err)
	}

	return &codeSearchTool{db: db}, nil
}

func (t *codeSearchTool) Name() string   { return "codegraph" }
func (t *codeSearchTool) Family() string { return "code_search" }

func (t *codeSearchTool) Invoke(ctx context.Context, args map[string]any) (Result, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return Result{}, fmt.Errorf("code_search tool requires name (glob pattern)")
	}
	kind, _ := args["kind"].(string)

	query := `
		FOR doc IN symbols
			FILTER LIKE(doc.name, @pattern, true)
			%s
			LIMIT 20
			RETURN { qname: doc.qname, name: doc.name, kind: doc.kind, signature: doc.signature, filepath: doc.filepath }
	`
	kindFilter := ""
	bindVars := map[string]any{"pattern": globToLike(name)}
	if kind != "" {
		kindFilter = "FILTER doc.kind == @kind"
		bindVars["kind"] = kind
	}
	query = fmt.Sprintf(query, kindFilter)

	cursor, err := t.db.Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return Result{}, fmt.Errorf("codegraph search query: %w", err)
	}
	defer cursor.Close()

	var results []symbolMatch
	for cursor.HasMore() {
		var m symbolMatch
		if _, err := cursor.ReadDocument(ctx, &m); err != nil {
			return Result{}, fmt.Errorf("reading codegraph search result: %w", err)
		}
		results = append(results, m)
	}

	claims := make([]turn.Claim, 0, len(results))
	for _, m := range results {
		c, err := turn.NewClaim(
			"symbol-"+m.QName,
			fmt.Sprintf("%s %s at %s: %s", m.Kind, m.QName, m.Filepath, m.Signature),
			"codegraph:"+m.QName,
			turn.EvidenceTool,
			0.95,
		)
		if err != nil {
			continue
		}
		claims = append(claims, c)
	}

	return Result{Status: "ok", Data: results, Claims: claims}, nil
}

type symbolMatch struct {
	QName     string `json:"qname"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature"`
	Filepath  string `json:"filepath"`
}

// globToLike converts a '*' glob pattern into an AQL LIKE pattern.
func globToLike(pattern string) string {
	out := make([]byte, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			out = append(out, '%')
		case '%', '_':
			out = append(out, '\\', pattern[i])
		default:
			out = append(out, pattern[i])
		}
	}
	return string(out)
}
