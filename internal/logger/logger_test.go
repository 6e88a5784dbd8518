package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return m
}

func TestNewRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if len(id) != 8 {
			t.Fatalf("expected 8 chars, got %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 99 {
		t.Errorf("request IDs collide: %d unique of 100", len(seen))
	}
}

func TestFromContextFields(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() context.Context
		want map[string]any
		omit []string
	}{
		{
			name: "bare",
			ctx:  context.Background,
			omit: []string{"requestId", "session", "turn"},
		},
		{
			name: "session and turn",
			ctx: func() context.Context {
				return WithTurn(WithSession(context.Background(), "sess-9"), 12)
			},
			want: map[string]any{"session": "sess-9", "turn": float64(12)},
			omit: []string{"requestId"},
		},
		{
			name: "turn zero is still logged",
			ctx:  func() context.Context { return WithTurn(context.Background(), 0) },
			want: map[string]any{"turn": float64(0)},
		},
		{
			name: "request keeps session",
			ctx: func() context.Context {
				return WithRequestID(WithSession(context.Background(), "sess-1"), "abcd1234")
			},
			want: map[string]any{"requestId": "abcd1234", "session": "sess-1"},
			omit: []string{"turn"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureGlobal(t)
			l := FromContext(tt.ctx())
			l.Info().Msg("hello")
			got := decodeLine(t, buf)
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
			for _, k := range tt.omit {
				if _, ok := got[k]; ok {
					t.Errorf("unexpected field %s", k)
				}
			}
		})
	}
}

func TestRequestIDFromContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	ctx := WithTurn(WithRequestID(context.Background(), "r1"), 4)
	if got := RequestIDFromContext(ctx); got != "r1" {
		t.Errorf("request id = %q after WithTurn", got)
	}
}

func TestLogBodyTruncates(t *testing.T) {
	buf := captureGlobal(t)
	LogBody(log.Logger, "Response", []byte(strings.Repeat("x", maxBodyLog+50)))
	got := decodeLine(t, buf)
	if got["truncated"] != true || len(got["body"].(string)) != maxBodyLog {
		t.Errorf("unexpected entry: truncated=%v len=%d", got["truncated"], len(got["body"].(string)))
	}
	if got["message"] != "Response body" {
		t.Errorf("message = %v", got["message"])
	}

	buf.Reset()
	LogBody(log.Logger, "Request", nil)
	if buf.Len() != 0 {
		t.Errorf("empty body logged: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitTeesJSONToFile(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	t.Setenv("LOG_LEVEL", "info")
	path := filepath.Join(t.TempDir(), "agent.log")
	var console bytes.Buffer
	closeLog := Init(Options{Console: &console, File: path})
	log.Info().Int("turn", 3).Msg("Turn played")
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var m map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &m); err != nil {
		t.Fatalf("file line is not JSON: %q", data)
	}
	if m["message"] != "Turn played" || m["turn"] != float64(3) {
		t.Errorf("file entry = %v", m)
	}
	if !strings.Contains(console.String(), "Turn played") {
		t.Errorf("console output missing message: %q", console.String())
	}
}
