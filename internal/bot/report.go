package bot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/freeeve/colony-agent/internal/model"
)

// Agent statuses carried on TurnReport.
const (
	StatusRegistering = "registering"
	StatusWaiting     = "waiting"
	StatusPlaying     = "playing"
)

// Side-channel event types.
const (
	EventTurn   = "turn_completed"
	EventStatus = "agent_status"
)

// TurnReport is the published view of the agent: the last completed turn
// plus the current status. Published reports are never modified.
type TurnReport struct {
	SessionID string    `json:"sessionId"`
	Team      string    `json:"team"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Turn      int       `json:"turn"`
	Analysis  *Analysis `json:"analysis,omitempty"`
	Strategy  *Strategy `json:"strategy,omitempty"`
	Orders    []Order   `json:"orders,omitempty"`
	Moves     int       `json:"moves"`
	ElapsedMs int64     `json:"elapsedMs"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record converts a played turn into an archive row.
func (r *TurnReport) Record() (*model.TurnRecord, error) {
	if r.Analysis == nil || r.Strategy == nil {
		return nil, fmt.Errorf("turn %d has no decisions to archive", r.Turn)
	}
	orders, err := json.Marshal(r.Orders)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	analysis, err := json.Marshal(r.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return &model.TurnRecord{
		SessionID:   r.SessionID,
		Turn:        r.Turn,
		Phase:       string(r.Strategy.Phase),
		Strategy:    r.Strategy.Name,
		Recovery:    r.Strategy.Recovery,
		UnitCount:   r.Analysis.Units.Counts.Total,
		EnemyCount:  len(r.Analysis.Threats.Enemies),
		ThreatLevel: r.Analysis.Threats.Level,
		Orders:      orders,
		Analysis:    analysis,
		CreatedAt:   r.UpdatedAt,
	}, nil
}
