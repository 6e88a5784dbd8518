// Command replay runs recorded arena snapshots through the decision core and
// prints one JSON line per turn.
//
// Usage:
//
//	go run ./cmd/replay/ turn_001.json turn_002.json
//	go run ./cmd/replay/ --full recorded/
//	go run ./cmd/replay/ --follow --redis redis://localhost:6379 --team reds
//
// Arguments may be snapshot files, JSONL files with one snapshot per line, or
// directories whose .json/.jsonl files are replayed in name order. With
// --follow nothing is replayed: the team's cached report and live events are
// read from Redis and printed as JSON lines until interrupted.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/bot"
	"github.com/freeeve/colony-agent/internal/logger"
	redisrepo "github.com/freeeve/colony-agent/internal/repository/redis"
	"github.com/freeeve/colony-agent/pkg/colony"
)

// turnLine is the per-turn output record.
type turnLine struct {
	Source      string           `json:"source"`
	Turn        int              `json:"turn"`
	Phase       bot.Phase        `json:"phase"`
	Strategy    string           `json:"strategy"`
	Recovery    bool             `json:"recovery"`
	Priorities  []string         `json:"priorities"`
	Adaptations []bot.Adaptation `json:"adaptations,omitempty"`
	Orders      []bot.Order      `json:"orders"`
	Moves       []colony.Move    `json:"moves"`
	Analysis    *bot.Analysis    `json:"analysis,omitempty"`
}

func main() {
	full := flag.Bool("full", false, "include the full analysis in every line")
	debug := flag.Bool("debug", false, "enable debug logging")
	followMode := flag.Bool("follow", false, "print a running agent's events from Redis instead of replaying files")
	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL for --follow")
	team := flag.String("team", os.Getenv("TEAM_NAME"), "team to follow")
	flag.Parse()

	// Logs go to stderr so stdout stays machine readable.
	closeLog := logger.Init(logger.Options{Debug: *debug, Console: os.Stderr})
	defer closeLog()

	if *followMode {
		runFollow(*redisURL, *team)
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: replay [--full] [--debug] <snapshot files or dirs>...")
		fmt.Fprintln(os.Stderr, "       replay --follow --redis <url> --team <name>")
		os.Exit(2)
	}

	files, err := expandInputs(flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list inputs")
	}

	agent := bot.NewAgent()
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	turns := 0
	for _, path := range files {
		snaps, err := readSnapshots(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("Failed to read snapshots")
		}
		for _, snap := range snaps {
			line := replayTurn(agent, path, snap, *full)
			if err := enc.Encode(line); err != nil {
				log.Fatal().Err(err).Msg("Failed to write output")
			}
			turns++
		}
	}
	log.Info().Int("files", len(files)).Int("turns", turns).Msg("Replay complete")
}

func runFollow(redisURL, team string) {
	if redisURL == "" || team == "" {
		fmt.Fprintln(os.Stderr, "--follow needs --redis and --team")
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := redisrepo.NewClient(ctx, redisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer client.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	log.Info().Str("team", team).Msg("Following agent events")
	n, err := follow(ctx, client, team, out)
	if err != nil {
		log.Error().Err(err).Msg("Follow stopped")
	}
	log.Info().Int("events", n).Msg("Follow complete")
}

func replayTurn(agent *bot.Agent, source string, snap *colony.Snapshot, full bool) turnLine {
	res := agent.Turn(snap)
	line := turnLine{
		Source:      filepath.Base(source),
		Turn:        snap.Turn,
		Phase:       res.Strategy.Phase,
		Strategy:    res.Strategy.Name,
		Recovery:    res.Strategy.Recovery,
		Priorities:  res.Strategy.Priorities,
		Adaptations: res.Strategy.Adaptations,
		Orders:      res.Orders,
		Moves:       res.Moves,
	}
	if line.Moves == nil {
		line.Moves = []colony.Move{}
	}
	if full {
		line.Analysis = res.Analysis
	}
	return line
}

// expandInputs turns arguments into an ordered file list.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var inDir []string
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !(strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".jsonl")) {
				continue
			}
			inDir = append(inDir, filepath.Join(arg, name))
		}
		sort.Strings(inDir)
		files = append(files, inDir...)
	}
	return files, nil
}

func readSnapshots(path string) ([]*colony.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeSnapshots(f)
}

// decodeSnapshots accepts a single JSON document or a stream of them.
func decodeSnapshots(r io.Reader) ([]*colony.Snapshot, error) {
	dec := json.NewDecoder(r)
	var snaps []*colony.Snapshot
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", len(snaps)+1, err)
		}
		snap, err := colony.ParseSnapshot(raw)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", len(snaps)+1, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
