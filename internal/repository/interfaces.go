package repository

import (
	"context"
	"encoding/json"

	"github.com/freeeve/colony-agent/internal/model"
)

// TurnRepository is the append-only archive of played turns.
type TurnRepository interface {
	SaveTurn(ctx context.Context, rec *model.TurnRecord) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]model.TurnRecord, error)
	SessionSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error)
}

// ReportCache holds the latest published report of each team.
type ReportCache interface {
	SetLatest(ctx context.Context, team string, report json.RawMessage) error
	GetLatest(ctx context.Context, team string) (json.RawMessage, error)
}
