package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/pkg/colony"
)

var (
	// ErrNotRegistered is returned when the server has no active round for this team.
	ErrNotRegistered = errors.New("not registered for an active round")
	// ErrUnauthorized is returned when the API token is rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// Registration is the server's reply to a register call.
type Registration struct {
	Name        string  `json:"name"`
	LobbyEndsIn float64 `json:"lobbyEndsIn"`
	NextTurn    float64 `json:"nextTurn"`
	Realm       string  `json:"realm"`
}

// Client is an HTTP client for the game server. Every call carries its own
// timeout on top of the caller's context.
type Client struct {
	name    string
	baseURL string
	token   string
	timeout time.Duration
	httpC   *http.Client
}

// NewClient creates a client for the given team and server URL.
func NewClient(name, baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		httpC:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Register joins the current or next round.
func (c *Client) Register(ctx context.Context) (*Registration, error) {
	var reg Registration
	body, err := c.do(ctx, http.MethodPost, "/api/register", map[string]string{"name": c.name})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &reg); err != nil {
			return nil, fmt.Errorf("decode registration: %w", err)
		}
	}
	log.Debug().Str("team", c.name).Str("realm", reg.Realm).Float64("lobbyEndsIn", reg.LobbyEndsIn).Msg("Registered")
	return &reg, nil
}

// Arena fetches the current world snapshot.
func (c *Client) Arena(ctx context.Context) (*colony.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/arena", nil)
	if err != nil {
		return nil, err
	}
	snap, err := colony.ParseSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("decode arena: %w", err)
	}
	return snap, nil
}

// SubmitMoves sends this turn's move commands.
func (c *Client) SubmitMoves(ctx context.Context, moves []colony.Move) error {
	if moves == nil {
		moves = []colony.Move{}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/move", map[string]any{"moves": moves})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpC.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, statusError(method, path, resp.StatusCode, body)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	return body, nil
}

func statusError(method, path string, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s %s: status %d: %w", method, path, status, ErrUnauthorized)
	case status == http.StatusNotFound || status == http.StatusConflict ||
		bytes.Contains(bytes.ToLower(body), []byte("not registered")):
		return fmt.Errorf("%s %s: status %d: %w", method, path, status, ErrNotRegistered)
	}
	return fmt.Errorf("%s %s: status %d: %s", method, path, status, body)
}
