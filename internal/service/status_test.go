package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/freeeve/colony-agent/internal/bot"
)

type recordedEvent struct {
	eventType string
	data      any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingBroadcaster) BroadcastEvent(eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{eventType, data})
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type staticSource struct{ report *bot.TurnReport }

func (s staticSource) Latest() *bot.TurnReport { return s.report }

func TestMultiBroadcaster(t *testing.T) {
	a, b := &recordingBroadcaster{}, &recordingBroadcaster{}
	m := MultiBroadcaster{a, nil, b, NoopBroadcaster{}}

	m.BroadcastEvent(bot.EventStatus, "x")

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("expected both broadcasters to receive once, got %d and %d", a.count(), b.count())
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	r := &bot.TurnReport{
		SessionID: "s",
		Team:      "red",
		Status:    bot.StatusPlaying,
		Turn:      40,
		Moves:     6,
		UpdatedAt: now.Add(-2 * time.Second),
		Strategy:  &bot.Strategy{Phase: bot.PhaseRecovery, Name: "recovery_rebuild", Recovery: true},
		Analysis: &bot.Analysis{
			Units:   bot.UnitAnalysis{Counts: bot.UnitCounts{Total: 4}},
			Threats: bot.ThreatAnalysis{Enemies: make([]bot.EnemyThreat, 3), Level: 0.7},
		},
	}

	s := Summarize(r, now)
	if s.Phase != "recovery" || s.Strategy != "recovery_rebuild" || !s.Recovery {
		t.Errorf("strategy fields not copied: %+v", s)
	}
	if s.Units != 4 || s.Enemies != 3 || s.ThreatLevel != 0.7 {
		t.Errorf("analysis fields not copied: %+v", s)
	}
	if s.AgeMs != 2000 {
		t.Errorf("expected age 2000ms, got %d", s.AgeMs)
	}
}

func TestSummarizeWaiting(t *testing.T) {
	s := Summarize(&bot.TurnReport{Status: bot.StatusWaiting, Message: "lobby ends in 30s"}, time.Now())
	if s.Status != bot.StatusWaiting || s.Phase != "" || s.Units != 0 {
		t.Errorf("unexpected waiting summary: %+v", s)
	}
}

func TestStatusReporterReport(t *testing.T) {
	rec := &recordingBroadcaster{}
	src := staticSource{report: &bot.TurnReport{Status: bot.StatusPlaying, Turn: 5, UpdatedAt: time.Now()}}
	r := NewStatusReporter(src, rec, time.Second)

	r.Report()

	if rec.count() != 1 {
		t.Fatalf("expected 1 event, got %d", rec.count())
	}
	ev := rec.events[0]
	if ev.eventType != bot.EventStatus {
		t.Errorf("expected %s, got %s", bot.EventStatus, ev.eventType)
	}
	if s, ok := ev.data.(StatusSummary); !ok || s.Turn != 5 {
		t.Errorf("unexpected payload: %#v", ev.data)
	}
}

func TestStatusReporterNilReport(t *testing.T) {
	rec := &recordingBroadcaster{}
	NewStatusReporter(staticSource{}, rec, time.Second).Report()
	if rec.count() != 0 {
		t.Errorf("expected no events without a report, got %d", rec.count())
	}
}

func TestStatusReporterStartStops(t *testing.T) {
	rec := &recordingBroadcaster{}
	src := staticSource{report: &bot.TurnReport{Status: bot.StatusWaiting, UpdatedAt: time.Now()}}
	r := NewStatusReporter(src, rec, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("reporter did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop on cancel")
	}
}
