package model

import (
	"encoding/json"
	"time"
)

// TurnRecord is one archived turn of an agent session.
type TurnRecord struct {
	ID          int64           `json:"id"`
	SessionID   string          `json:"session_id"`
	Turn        int             `json:"turn"`
	Phase       string          `json:"phase"`
	Strategy    string          `json:"strategy"`
	Recovery    bool            `json:"recovery"`
	UnitCount   int             `json:"unit_count"`
	EnemyCount  int             `json:"enemy_count"`
	ThreatLevel float64         `json:"threat_level"`
	Orders      json.RawMessage `json:"orders"`
	Analysis    json.RawMessage `json:"analysis"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SessionSummary aggregates the archived turns of one session.
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	Turns         int       `json:"turns"`
	FirstTurn     int       `json:"first_turn"`
	LastTurn      int       `json:"last_turn"`
	RecoveryTurns int       `json:"recovery_turns"`
	StartedAt     time.Time `json:"started_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}
