// Package logger configures the process-wide zerolog logger and carries
// request, session and turn fields through contexts.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// maxBodyLog bounds how much of a request or response body is logged.
const maxBodyLog = 1000

// Options controls Init. The zero value logs to stdout at LOG_LEVEL.
type Options struct {
	// Debug forces debug level regardless of LOG_LEVEL.
	Debug bool
	// Console receives human-readable output; stdout when nil.
	Console io.Writer
	// File receives raw JSON lines; LOG_FILE when empty.
	File string
}

// Init installs the global logger. The returned func closes the log file, if
// one was opened.
func Init(opts Options) func() {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = padCaller

	level := parseLevel(os.Getenv("LOG_LEVEL"))
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	var output io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: milliTimeFormat,
		NoColor:    !isDevelopmentMode(),
	}

	closeFn := func() {}
	file := opts.File
	if file == "" {
		file = os.Getenv("LOG_FILE")
	}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file %s: %v\n", file, err)
		} else {
			output = io.MultiWriter(output, f)
			closeFn = func() { f.Close() }
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	log.Debug().Str("level", level.String()).Str("file", file).Msg("Logger initialized")
	return closeFn
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// padCaller renders file:line in a fixed-width column.
func padCaller(_ uintptr, file string, line int) string {
	const width = 24
	s := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(s) >= width {
		return s[len(s)-width:]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func isDevelopmentMode() bool {
	return os.Getenv("DEV") == "true" || os.Getenv("DEV_MODE") == "true"
}

type fieldsKey struct{}

// fields are the log fields carried on a context.
type fields struct {
	requestID string
	session   string
	turn      int
	hasTurn   bool
}

func fieldsFrom(ctx context.Context) fields {
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

// NewRequestID returns a short random id for correlating one HTTP request.
func NewRequestID() string {
	return uuid.NewString()[:8]
}

// WithRequestID stores a request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	f := fieldsFrom(ctx)
	f.requestID = id
	return context.WithValue(ctx, fieldsKey{}, f)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return fieldsFrom(ctx).requestID
}

// WithSession stores the agent session id on ctx.
func WithSession(ctx context.Context, session string) context.Context {
	f := fieldsFrom(ctx)
	f.session = session
	return context.WithValue(ctx, fieldsKey{}, f)
}

// WithTurn stores the turn being played on ctx.
func WithTurn(ctx context.Context, turn int) context.Context {
	f := fieldsFrom(ctx)
	f.turn, f.hasTurn = turn, true
	return context.WithValue(ctx, fieldsKey{}, f)
}

// FromContext returns the global logger with every field stored on ctx.
func FromContext(ctx context.Context) zerolog.Logger {
	f := fieldsFrom(ctx)
	c := log.Logger.With()
	if f.requestID != "" {
		c = c.Str("requestId", f.requestID)
	}
	if f.session != "" {
		c = c.Str("session", f.session)
	}
	if f.hasTurn {
		c = c.Int("turn", f.turn)
	}
	return c.Logger()
}

// LogBody logs a request or response body at debug level, truncated.
func LogBody(l zerolog.Logger, kind string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := l.Debug()
	if len(body) > maxBodyLog {
		body = body[:maxBodyLog]
		ev = ev.Bool("truncated", true)
	}
	ev.Str("body", string(body)).Msgf("%s body", kind)
}
