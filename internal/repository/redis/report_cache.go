package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/bot"
)

// Key patterns for agent state.
func latestKey(team string) string { return "colony:" + team + ":latest" }
func eventsKey(team string) string { return "colony:" + team + ":events" }

// latestTTL keeps a stale report from outliving a dead agent for long.
const latestTTL = 10 * time.Minute

const publishTimeout = 2 * time.Second

// Event is the envelope published on the team's events channel.
type Event struct {
	Type string          `json:"type"`
	Team string          `json:"team"`
	Data json.RawMessage `json:"data"`
}

// SetLatest stores the latest report JSON for a team.
func (c *Client) SetLatest(ctx context.Context, team string, report json.RawMessage) error {
	return c.rdb.Set(ctx, latestKey(team), []byte(report), latestTTL).Err()
}

// GetLatest retrieves the latest report JSON, or nil if none is cached.
func (c *Client) GetLatest(ctx context.Context, team string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, latestKey(team)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest report: %w", err)
	}
	return json.RawMessage(data), nil
}

// Publish sends an event on the team's channel.
func (c *Client) Publish(ctx context.Context, team string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.rdb.Publish(ctx, eventsKey(team), payload).Err()
}

// Subscribe returns a channel of events for a team. It is closed when ctx ends.
func (c *Client) Subscribe(ctx context.Context, team string) (<-chan Event, error) {
	pubsub := c.rdb.Subscribe(ctx, eventsKey(team))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", eventsKey(team), err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("Skipping malformed event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Publisher mirrors agent events into Redis for out-of-process viewers.
type Publisher struct {
	client *Client
	team   string
}

// NewPublisher creates a Publisher for a team.
func NewPublisher(client *Client, team string) *Publisher {
	return &Publisher{client: client, team: team}
}

// BroadcastEvent implements service.Broadcaster. Turn reports also refresh
// the cached latest report.
func (p *Publisher) BroadcastEvent(eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("Failed to marshal event for Redis")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if eventType == bot.EventTurn {
		if err := p.client.SetLatest(ctx, p.team, payload); err != nil {
			log.Warn().Err(err).Str("team", p.team).Msg("Failed to cache latest report")
		}
	}
	if err := p.client.Publish(ctx, p.team, Event{Type: eventType, Team: p.team, Data: payload}); err != nil {
		log.Warn().Err(err).Str("team", p.team).Str("event", eventType).Msg("Failed to publish event")
	}
}
