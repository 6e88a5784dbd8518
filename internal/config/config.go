package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ServerURL           string
	APIToken            string
	TeamName            string
	TurnInterval        time.Duration
	RequestTimeout      time.Duration
	RetryBackoff        time.Duration
	StatusInterval      time.Duration
	MaxRegisterAttempts int
	VizPort             string
	RedisURL            string
	DatabaseURL         string
	JWTSecret           string
	ViewerKey           string
}

// Load reads configuration from environment variables with sensible defaults.
// Optional integrations (visualization, Redis, Postgres) stay disabled when
// their variables are unset.
func Load() *Config {
	return &Config{
		ServerURL:           envOrDefault("SERVER_URL", "http://localhost:8080"),
		APIToken:            os.Getenv("API_TOKEN"),
		TeamName:            envOrDefault("TEAM_NAME", "colony"),
		TurnInterval:        durationOrDefault("TURN_INTERVAL", time.Second),
		RequestTimeout:      durationOrDefault("REQUEST_TIMEOUT", 5*time.Second),
		RetryBackoff:        durationOrDefault("RETRY_BACKOFF", 2*time.Second),
		StatusInterval:      durationOrDefault("STATUS_INTERVAL", 5*time.Second),
		MaxRegisterAttempts: intOrDefault("MAX_REGISTER_ATTEMPTS", 10),
		VizPort:             os.Getenv("VIZ_PORT"),
		RedisURL:            os.Getenv("REDIS_URL"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           envOrDefault("JWT_SECRET", "dev-secret-change-me"),
		ViewerKey:           os.Getenv("VIEWER_KEY"),
	}
}

// Validate reports configuration that makes startup impossible.
func (c *Config) Validate() error {
	switch {
	case c.ServerURL == "":
		return errors.New("SERVER_URL is required")
	case c.APIToken == "":
		return errors.New("API_TOKEN is required")
	case c.TeamName == "":
		return errors.New("TEAM_NAME is required")
	case c.VizPort != "" && c.ViewerKey == "":
		return errors.New("VIEWER_KEY is required when VIZ_PORT is set")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Dur("default", fallback).Msg("Invalid duration, using default")
		return fallback
	}
	return d
}

func intOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Int("default", fallback).Msg("Invalid integer, using default")
		return fallback
	}
	return n
}
