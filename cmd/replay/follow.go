package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	redisrepo "github.com/freeeve/colony-agent/internal/repository/redis"
)

// eventFeed is the part of the Redis client a follower needs.
type eventFeed interface {
	GetLatest(ctx context.Context, team string) (json.RawMessage, error)
	Subscribe(ctx context.Context, team string) (<-chan redisrepo.Event, error)
}

// follow prints the team's cached report, if any, as a "snapshot" event and
// then every live event until ctx ends or the feed closes.
func follow(ctx context.Context, feed eventFeed, team string, w io.Writer) (int, error) {
	// Subscribe first so nothing published between the two calls is lost.
	events, err := feed.Subscribe(ctx, team)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	written := 0
	emit := func(ev redisrepo.Event) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		written++
		if f, ok := w.(interface{ Flush() error }); ok {
			return f.Flush()
		}
		return nil
	}

	latest, err := feed.GetLatest(ctx, team)
	if err != nil {
		log.Warn().Err(err).Str("team", team).Msg("No cached report, following live events only")
	} else if latest != nil {
		if err := emit(redisrepo.Event{Type: "snapshot", Team: team, Data: latest}); err != nil {
			return written, fmt.Errorf("write cached report: %w", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return written, nil
		case ev, ok := <-events:
			if !ok {
				return written, nil
			}
			if err := emit(ev); err != nil {
				return written, fmt.Errorf("write event: %w", err)
			}
		}
	}
}
