package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/bot"
)

// ReportSource exposes the latest published agent report.
type ReportSource interface {
	Latest() *bot.TurnReport
}

// StatusSummary is the compact payload of an agent_status event.
type StatusSummary struct {
	SessionID   string  `json:"sessionId"`
	Team        string  `json:"team"`
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	Turn        int     `json:"turn"`
	Phase       string  `json:"phase,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
	Recovery    bool    `json:"recovery"`
	Units       int     `json:"units"`
	Enemies     int     `json:"enemies"`
	ThreatLevel float64 `json:"threatLevel"`
	Moves       int     `json:"moves"`
	AgeMs       int64   `json:"ageMs"`
}

// Summarize reduces a report to its status summary.
func Summarize(r *bot.TurnReport, now time.Time) StatusSummary {
	s := StatusSummary{
		SessionID: r.SessionID,
		Team:      r.Team,
		Status:    r.Status,
		Message:   r.Message,
		Turn:      r.Turn,
		Moves:     r.Moves,
		AgeMs:     now.Sub(r.UpdatedAt).Milliseconds(),
	}
	if r.Strategy != nil {
		s.Phase = string(r.Strategy.Phase)
		s.Strategy = r.Strategy.Name
		s.Recovery = r.Strategy.Recovery
	}
	if r.Analysis != nil {
		s.Units = r.Analysis.Units.Counts.Total
		s.Enemies = len(r.Analysis.Threats.Enemies)
		s.ThreatLevel = r.Analysis.Threats.Level
	}
	return s
}

// StatusReporter periodically logs and broadcasts the agent's status. It only
// reads published reports and never touches the turn loop's state.
type StatusReporter struct {
	source      ReportSource
	broadcaster Broadcaster
	interval    time.Duration
	now         func() time.Time
}

// NewStatusReporter creates a StatusReporter.
func NewStatusReporter(source ReportSource, broadcaster Broadcaster, interval time.Duration) *StatusReporter {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StatusReporter{source: source, broadcaster: broadcaster, interval: interval, now: time.Now}
}

// Start reports on every tick until ctx is cancelled.
func (s *StatusReporter) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("Status reporter started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Status reporter stopped")
			return
		case <-ticker.C:
			s.Report()
		}
	}
}

// Report emits one status summary.
func (s *StatusReporter) Report() {
	r := s.source.Latest()
	if r == nil {
		return
	}
	summary := Summarize(r, s.now())
	log.Info().
		Str("status", summary.Status).
		Int("turn", summary.Turn).
		Str("phase", summary.Phase).
		Str("strategy", summary.Strategy).
		Int("units", summary.Units).
		Int("enemies", summary.Enemies).
		Float64("threat", summary.ThreatLevel).
		Msg("Agent status")
	s.broadcaster.BroadcastEvent(bot.EventStatus, summary)
}
