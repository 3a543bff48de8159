// Package store persists turns: a Postgres index of turn metadata plus claims, and a
// per-turn directory on disk (context.md, claims.jsonl, artifacts/) for anything too
// large or unstructured for a row. Adapted from internal/store/store.go's typed
// accessor style, but built on raw pgx (no sqlc.Queries layer was available in this
// snapshot — see core/db/db.go's WithTx deviation note) and core/db/db.go's pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basegraphhq/turnengine/core/db"
	"github.com/basegraphhq/turnengine/internal/turn"
)

var ErrNotFound = errors.New("not found")

// TurnRecord is the §8 index row: enough to locate and list turns without reading
// their full archived document.
type TurnRecord struct {
	TurnID      string
	SessionID   string
	Status      turn.Status
	ArchivePath string
	SavedAt     time.Time
}

// TurnStore indexes completed turns and serves the recent-claims lookup the
// retrieval.RecentTurn source depends on.
type TurnStore struct {
	db   *db.DB
	pool *pgxpool.Pool
}

func NewTurnStore(database *db.DB) *TurnStore {
	return &TurnStore{db: database, pool: database.Pool()}
}

// SaveTurn writes the §8 index row and flattens §4's claims into the claims table,
// within one transaction so a crash between the two never leaves a turn indexed
// without its claims (or vice versa).
func (s *TurnStore) SaveTurn(ctx context.Context, doc *turn.Document) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO turns (turn_id, session_id, status, archive_path, saved_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (turn_id) DO UPDATE SET status = $3, archive_path = $4, saved_at = $5
		`, doc.TurnID, doc.SessionID, string(doc.Status), doc.S8.ArchivePath, doc.S8.SavedAt); err != nil {
			return fmt.Errorf("indexing turn: %w", err)
		}

		for _, c := range doc.Claims() {
			if _, err := tx.Exec(ctx, `
				INSERT INTO turn_claims (turn_id, claim_id, session_id, text, source_ref, evidence_kind, confidence, produced_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (turn_id, claim_id) DO NOTHING
			`, doc.TurnID, c.ID, doc.SessionID, c.Text, c.SourceRef, string(c.EvidenceKind), c.Confidence, c.ProducedAt); err != nil {
				return fmt.Errorf("indexing claim %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// GetTurn looks up a turn's index row by id.
func (s *TurnStore) GetTurn(ctx context.Context, turnID string) (TurnRecord, error) {
	var rec TurnRecord
	err := s.pool.QueryRow(ctx, `
		SELECT turn_id, session_id, status, archive_path, saved_at
		FROM turns WHERE turn_id = $1
	`, turnID).Scan(&rec.TurnID, &rec.SessionID, &rec.Status, &rec.ArchivePath, &rec.SavedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TurnRecord{}, ErrNotFound
		}
		return TurnRecord{}, fmt.Errorf("fetching turn %s: %w", turnID, err)
	}
	return rec, nil
}

// ReindexTurn upserts just the §8 index row from an archive-retry task, for a turn
// whose local archive write already succeeded but whose index write didn't. Claims
// aren't replayed here: SaveTurn writes them in the same transaction as the index row,
// so a turn reindexed this way has no turn_claims rows. That only degrades the
// recent-claims retrieval source; it doesn't corrupt the turn record.
func (s *TurnStore) ReindexTurn(ctx context.Context, rec TurnRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO turns (turn_id, session_id, status, archive_path, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (turn_id) DO UPDATE SET status = $3, archive_path = $4, saved_at = $5
	`, rec.TurnID, rec.SessionID, string(rec.Status), rec.ArchivePath, rec.SavedAt)
	if err != nil {
		return fmt.Errorf("reindexing turn %s: %w", rec.TurnID, err)
	}
	return nil
}

// RecentClaims implements retrieval.RecentTurnStore: the most recent limit claims for
// a session, most recent first.
func (s *TurnStore) RecentClaims(ctx context.Context, sessionID string, limit int) ([]turn.Claim, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT claim_id, text, source_ref, evidence_kind, confidence, produced_at
		FROM turn_claims
		WHERE session_id = $1
		ORDER BY produced_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent claims query: %w", err)
	}
	defer rows.Close()

	var claims []turn.Claim
	for rows.Next() {
		var c turn.Claim
		var kind string
		if err := rows.Scan(&c.ID, &c.Text, &c.SourceRef, &kind, &c.Confidence, &c.ProducedAt); err != nil {
			return nil, fmt.Errorf("recent claims scan: %w", err)
		}
		c.EvidenceKind = turn.EvidenceKind(kind)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
