package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/basegraphhq/turnengine/internal/turn"
	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
)

// OlderTurnFullText is the older-turn Source: past turns beyond the hot recent window,
// indexed into Typesense so a semantically related (not just recent) turn can surface.
// This wires a teacher go.mod dependency (typesense-go) that no committed file in the
// teacher tree exercises.
type OlderTurnFullText struct {
	client    *typesense.Client
	collection string
}

func NewOlderTurnFullText(client *typesense.Client, collection string) *OlderTurnFullText {
	return &OlderTurnFullText{client: client, collection: collection}
}

func (f *OlderTurnFullText) Name() string       { return "older_turn_fulltext" }
func (f *OlderTurnFullText) Priority() Priority { return PriorityOlderTurn }

func (f *OlderTurnFullText) Retrieve(ctx context.Context, query, sessionID string) ([]turn.Claim, error) {
	filterBy := fmt.Sprintf("session_id:=%s", sessionID)
	perPage := 10
	searchParams := &api.SearchCollectionParams{
		Q:        &query,
		QueryBy:  ptrStr("summary"),
		FilterBy: &filterBy,
		PerPage:  &perPage,
	}

	result, err := f.client.Collection(f.collection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("typesense search: %w", err)
	}

	var claims []turn.Claim
	if result.Hits == nil {
		return claims, nil
	}
	for i, hit := range *result.Hits {
		doc := hit.Document
		if doc == nil {
			continue
		}
		summary, _ := (*doc)["summary"].(string)
		turnID, _ := (*doc)["turn_id"].(string)
		if summary == "" {
			continue
		}
		c, err := turn.NewClaim(
			"older-turn-"+turnID+"-"+strconv.Itoa(i),
			summary,
			"turn:"+turnID,
			turn.EvidenceMemory,
			0.6,
		)
		if err != nil {
			continue
		}
		c.Historical = true
		claims = append(claims, c)
	}
	return claims, nil
}

func ptrStr(s string) *string { return &s }
