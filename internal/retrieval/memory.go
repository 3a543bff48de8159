package retrieval

import (
	"context"
	"fmt"

	"github.com/basegraphhq/turnengine/internal/turn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ForeverMemory is the highest-priority Source: durable facts about the user/session
// that never expire (preferences, standing constraints), stored in Postgres. Adapted
// from the teacher's core/db query style (pool.Query + manual scan, no sqlc layer
// available in this snapshot — see core/db/db.go's WithTx deviation note).
type ForeverMemory struct {
	pool *pgxpool.Pool
}

func NewForeverMemory(pool *pgxpool.Pool) *ForeverMemory {
	return &ForeverMemory{pool: pool}
}

func (m *ForeverMemory) Name() string       { return "forever_memory" }
func (m *ForeverMemory) Priority() Priority { return PriorityForeverMemory }

func (m *ForeverMemory) Retrieve(ctx context.Context, query, sessionID string) ([]turn.Claim, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT id, text, confidence
		FROM forever_memory
		WHERE session_id = $1
		ORDER BY confidence DESC
		LIMIT 20
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("forever memory query: %w", err)
	}
	defer rows.Close()

	var claims []turn.Claim
	for rows.Next() {
		var id, text string
		var confidence float64
		if err := rows.Scan(&id, &text, &confidence); err != nil {
			return nil, fmt.Errorf("forever memory scan: %w", err)
		}
		c, err := turn.NewClaim(id, text, "memory:"+id, turn.EvidenceMemory, confidence)
		if err != nil {
			continue
		}
		c.Historical = true
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// RecentTurnStore is the subset of turn persistence the recent-turn Source needs: the
// last few turns' committed claims for this session, still within the hot window.
type RecentTurnStore interface {
	RecentClaims(ctx context.Context, sessionID string, limit int) ([]turn.Claim, error)
}

// RecentTurn is the recent-turn Source: claims committed by this session's last few
// turns, prioritized above older/archived history but below durable memory.
type RecentTurn struct {
	store RecentTurnStore
	limit int
}

func NewRecentTurn(store RecentTurnStore, limit int) *RecentTurn {
	if limit <= 0 {
		limit = 5
	}
	return &RecentTurn{store: store, limit: limit}
}

func (r *RecentTurn) Name() string       { return "recent_turn" }
func (r *RecentTurn) Priority() Priority { return PriorityRecentTurn }

func (r *RecentTurn) Retrieve(ctx context.Context, query, sessionID string) ([]turn.Claim, error) {
	claims, err := r.store.RecentClaims(ctx, sessionID, r.limit)
	if err != nil {
		return nil, fmt.Errorf("recent turn claims: %w", err)
	}
	for i := range claims {
		claims[i].Historical = true
	}
	return claims, nil
}
