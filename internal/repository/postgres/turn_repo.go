package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/freeeve/colony-agent/internal/model"
)

// TurnRepo archives played turns.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

// SaveTurn inserts a turn. Re-saving the same session turn overwrites it.
func (r *TurnRepo) SaveTurn(ctx context.Context, rec *model.TurnRecord) error {
	orders, analysis := rec.Orders, rec.Analysis
	if len(orders) == 0 {
		orders = []byte("[]")
	}
	if len(analysis) == 0 {
		analysis = []byte("{}")
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO turns (session_id, turn, phase, strategy, recovery, unit_count, enemy_count, threat_level, orders, analysis)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id, turn) DO UPDATE SET
		   phase = EXCLUDED.phase, strategy = EXCLUDED.strategy, recovery = EXCLUDED.recovery,
		   unit_count = EXCLUDED.unit_count, enemy_count = EXCLUDED.enemy_count,
		   threat_level = EXCLUDED.threat_level, orders = EXCLUDED.orders, analysis = EXCLUDED.analysis
		 RETURNING id, created_at`,
		rec.SessionID, rec.Turn, rec.Phase, rec.Strategy, rec.Recovery,
		rec.UnitCount, rec.EnemyCount, rec.ThreatLevel, []byte(orders), []byte(analysis),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("save turn %d: %w", rec.Turn, err)
	}
	return nil
}

// ListTurns returns the most recent turns of a session, newest first.
func (r *TurnRepo) ListTurns(ctx context.Context, sessionID string, limit int) ([]model.TurnRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, turn, phase, strategy, recovery, unit_count, enemy_count, threat_level, orders, analysis, created_at
		 FROM turns WHERE session_id = $1
		 ORDER BY turn DESC LIMIT $2`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []model.TurnRecord
	for rows.Next() {
		var t model.TurnRecord
		var orders, analysis []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Turn, &t.Phase, &t.Strategy, &t.Recovery,
			&t.UnitCount, &t.EnemyCount, &t.ThreatLevel, &orders, &analysis, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Orders, t.Analysis = orders, analysis
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// SessionSummary aggregates a session's archive. It returns nil when the
// session has no turns.
func (r *TurnRepo) SessionSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	s := model.SessionSummary{SessionID: sessionID}
	var first, last sql.NullInt64
	var started, lastSeen sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(turn), MAX(turn), COUNT(*) FILTER (WHERE recovery), MIN(created_at), MAX(created_at)
		 FROM turns WHERE session_id = $1`, sessionID,
	).Scan(&s.Turns, &first, &last, &s.RecoveryTurns, &started, &lastSeen)
	if err != nil {
		return nil, fmt.Errorf("session summary: %w", err)
	}
	if s.Turns == 0 {
		return nil, nil
	}
	s.FirstTurn, s.LastTurn = int(first.Int64), int(last.Int64)
	s.StartedAt, s.LastSeenAt = started.Time, lastSeen.Time
	return &s, nil
}
