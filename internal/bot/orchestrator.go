package bot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/logger"
	"github.com/freeeve/colony-agent/internal/model"
	"github.com/freeeve/colony-agent/pkg/colony"
)

// GameClient is the game server API the orchestrator drives.
type GameClient interface {
	Register(ctx context.Context) (*Registration, error)
	Arena(ctx context.Context) (*colony.Snapshot, error)
	SubmitMoves(ctx context.Context, moves []colony.Move) error
}

// Broadcaster receives side-channel events. Implementations must not block
// for long; delivery happens off the turn loop.
type Broadcaster interface {
	BroadcastEvent(eventType string, data any)
}

// TurnArchive stores completed turns.
type TurnArchive interface {
	SaveTurn(ctx context.Context, rec *model.TurnRecord) error
}

// OrchestratorConfig holds the turn loop timing.
type OrchestratorConfig struct {
	Team                string
	TurnInterval        time.Duration
	RetryBackoff        time.Duration
	MaxRegisterAttempts int
	ArchiveTimeout      time.Duration
}

func (c *OrchestratorConfig) setDefaults() {
	if c.TurnInterval <= 0 {
		c.TurnInterval = time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.MaxRegisterAttempts <= 0 {
		c.MaxRegisterAttempts = 10
	}
	if c.ArchiveTimeout <= 0 {
		c.ArchiveTimeout = 5 * time.Second
	}
}

const sideChannelBuffer = 16

type sideEvent struct {
	eventType string
	report    *TurnReport
}

// Orchestrator runs the turn loop: fetch, decide, submit, publish, sleep.
// Turns never overlap. Latest may be called from any goroutine.
type Orchestrator struct {
	client      GameClient
	agent       *Agent
	cfg         OrchestratorConfig
	sessionID   string
	broadcaster Broadcaster
	archive     TurnArchive
	latest      atomic.Pointer[TurnReport]
	events      chan sideEvent
}

// NewOrchestrator creates an Orchestrator with a fresh session id.
func NewOrchestrator(client GameClient, agent *Agent, cfg OrchestratorConfig) *Orchestrator {
	cfg.setDefaults()
	o := &Orchestrator{
		client:    client,
		agent:     agent,
		cfg:       cfg,
		sessionID: uuid.NewString(),
		events:    make(chan sideEvent, sideChannelBuffer),
	}
	o.latest.Store(&TurnReport{
		SessionID: o.sessionID,
		Team:      cfg.Team,
		Status:    StatusRegistering,
		UpdatedAt: time.Now().UTC(),
	})
	return o
}

// SetBroadcaster sets the side-channel sink.
func (o *Orchestrator) SetBroadcaster(b Broadcaster) { o.broadcaster = b }

// SetArchive sets the turn archive.
func (o *Orchestrator) SetArchive(a TurnArchive) { o.archive = a }

// SessionID returns the id stamped on every report of this process.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// Latest returns the most recently published report. It is never nil.
func (o *Orchestrator) Latest() *TurnReport { return o.latest.Load() }

// Run registers and plays until ctx is cancelled. It returns an error only
// when registration cannot succeed or ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx = logger.WithSession(ctx, o.sessionID)
	l := logger.FromContext(ctx)
	l.Info().Str("team", o.cfg.Team).Dur("turnInterval", o.cfg.TurnInterval).Msg("Starting agent")
	go o.sideChannel(ctx)

	if err := o.register(ctx); err != nil {
		return err
	}
	return o.playLoop(ctx)
}

// register retries with a fixed backoff. A rejected token stops immediately.
func (o *Orchestrator) register(ctx context.Context) error {
	o.publishStatus(StatusRegistering, "")
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxRegisterAttempts; attempt++ {
		reg, err := o.client.Register(ctx)
		if err == nil {
			log.Info().Str("team", o.cfg.Team).Str("realm", reg.Realm).Float64("lobbyEndsIn", reg.LobbyEndsIn).Msg("Registered for round")
			msg := ""
			if reg.LobbyEndsIn > 0 {
				msg = fmt.Sprintf("lobby ends in %.0fs", reg.LobbyEndsIn)
			}
			o.publishStatus(StatusWaiting, msg)
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return fmt.Errorf("register %s: %w", o.cfg.Team, err)
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max", o.cfg.MaxRegisterAttempts).Msg("Registration failed, retrying")
		if err := sleep(ctx, o.cfg.RetryBackoff); err != nil {
			return err
		}
	}
	return fmt.Errorf("register %s after %d attempts: %w", o.cfg.Team, o.cfg.MaxRegisterAttempts, lastErr)
}

func (o *Orchestrator) playLoop(ctx context.Context) error {
	lastTurn := -1
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context cancelled, stopping agent")
			return ctx.Err()
		default:
		}

		wait, err := o.playTurn(ctx, &lastTurn)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			continue
		case errors.Is(err, ErrNotRegistered):
			log.Info().Err(err).Msg("Not in an active round, re-registering")
			o.publishStatus(StatusWaiting, "not registered")
			if err := o.register(ctx); err != nil {
				return err
			}
			lastTurn = -1
			wait = o.cfg.RetryBackoff
		default:
			log.Warn().Err(err).Int("lastTurn", lastTurn).Msg("Turn failed, retrying after backoff")
			wait = o.cfg.RetryBackoff
		}

		if err := sleep(ctx, wait); err != nil {
			log.Info().Msg("Context cancelled, stopping agent")
			return err
		}
	}
}

// playTurn runs one turn and returns how long to wait before the next fetch.
func (o *Orchestrator) playTurn(ctx context.Context, lastTurn *int) (time.Duration, error) {
	snap, err := o.client.Arena(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch arena: %w", err)
	}
	wait := o.nextWait(snap)
	if snap.Turn == *lastTurn {
		log.Debug().Int("turn", snap.Turn).Msg("Turn already played")
		return wait, nil
	}

	ctx = logger.WithTurn(ctx, snap.Turn)
	start := time.Now()
	res := o.agent.Turn(snap)
	if err := o.client.SubmitMoves(ctx, res.Moves); err != nil {
		return 0, fmt.Errorf("submit moves for turn %d: %w", snap.Turn, err)
	}
	*lastTurn = snap.Turn
	elapsed := time.Since(start)

	report := &TurnReport{
		SessionID: o.sessionID,
		Team:      o.cfg.Team,
		Status:    StatusPlaying,
		Turn:      snap.Turn,
		Analysis:  res.Analysis,
		Strategy:  res.Strategy,
		Orders:    res.Orders,
		Moves:     len(res.Moves),
		ElapsedMs: elapsed.Milliseconds(),
		UpdatedAt: time.Now().UTC(),
	}
	o.latest.Store(report)
	o.enqueue(EventTurn, report)

	l := logger.FromContext(ctx)
	l.Info().
		Str("phase", string(res.Strategy.Phase)).
		Str("strategy", res.Strategy.Name).
		Int("units", res.Analysis.Units.Counts.Total).
		Int("enemies", len(res.Analysis.Threats.Enemies)).
		Int("moves", len(res.Moves)).
		Dur("elapsed", elapsed).
		Msg("Turn played")
	return wait, nil
}

// nextWait is the turn interval, shortened when the server says the next
// turn starts sooner.
func (o *Orchestrator) nextWait(snap *colony.Snapshot) time.Duration {
	wait := o.cfg.TurnInterval
	if snap.NextTurnIn > 0 {
		if d := time.Duration(snap.NextTurnIn * float64(time.Second)); d < wait {
			wait = d
		}
	}
	return wait
}

func (o *Orchestrator) publishStatus(status, message string) {
	next := *o.latest.Load()
	next.Status = status
	next.Message = message
	next.UpdatedAt = time.Now().UTC()
	o.latest.Store(&next)
	o.enqueue(EventStatus, &next)
}

// enqueue hands a report to the side channel without ever blocking.
func (o *Orchestrator) enqueue(eventType string, r *TurnReport) {
	select {
	case o.events <- sideEvent{eventType: eventType, report: r}:
	default:
		log.Warn().Str("event", eventType).Int("turn", r.Turn).Msg("Side channel full, dropping event")
	}
}

func (o *Orchestrator) sideChannel(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-o.events:
			o.deliver(ctx, ev)
		}
	}
}

func (o *Orchestrator) deliver(ctx context.Context, ev sideEvent) {
	if o.broadcaster != nil {
		o.broadcaster.BroadcastEvent(ev.eventType, ev.report)
	}
	if ev.eventType != EventTurn || o.archive == nil {
		return
	}
	rec, err := ev.report.Record()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to build turn record")
		return
	}
	actx, cancel := context.WithTimeout(ctx, o.cfg.ArchiveTimeout)
	defer cancel()
	if err := o.archive.SaveTurn(actx, rec); err != nil {
		l := logger.FromContext(logger.WithTurn(ctx, rec.Turn))
		l.Warn().Err(err).Msg("Failed to archive turn")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
