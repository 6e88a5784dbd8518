package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/auth"
	"github.com/freeeve/colony-agent/internal/bot"
	"github.com/freeeve/colony-agent/internal/config"
	"github.com/freeeve/colony-agent/internal/handler"
	"github.com/freeeve/colony-agent/internal/logger"
	"github.com/freeeve/colony-agent/internal/middleware"
	"github.com/freeeve/colony-agent/internal/repository"
	"github.com/freeeve/colony-agent/internal/repository/postgres"
	redisrepo "github.com/freeeve/colony-agent/internal/repository/redis"
	"github.com/freeeve/colony-agent/internal/service"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	serverURL := flag.String("server", "", "game server base URL (overrides SERVER_URL)")
	team := flag.String("team", "", "team name (overrides TEAM_NAME)")
	vizPort := flag.String("viz-port", "", "visualization server port (overrides VIZ_PORT)")
	turnInterval := flag.Duration("turn-interval", 0, "turn loop interval (overrides TURN_INTERVAL)")
	flag.Parse()

	closeLog := logger.Init(logger.Options{Debug: *debug})
	defer closeLog()
	cfg := config.Load()
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *team != "" {
		cfg.TeamName = *team
	}
	if *vizPort != "" {
		cfg.VizPort = *vizPort
	}
	if *turnInterval > 0 {
		cfg.TurnInterval = *turnInterval
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().Str("server", cfg.ServerURL).Str("team", cfg.TeamName).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := bot.NewClient(cfg.TeamName, cfg.ServerURL, cfg.APIToken, cfg.RequestTimeout)
	orch := bot.NewOrchestrator(client, bot.NewAgent(), bot.OrchestratorConfig{
		Team:                cfg.TeamName,
		TurnInterval:        cfg.TurnInterval,
		RetryBackoff:        cfg.RetryBackoff,
		MaxRegisterAttempts: cfg.MaxRegisterAttempts,
	})

	var sinks service.MultiBroadcaster

	// Redis mirror
	var cache repository.ReportCache
	if cfg.RedisURL != "" {
		redisClient, err := redisrepo.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()
		sinks = append(sinks, redisrepo.NewPublisher(redisClient, cfg.TeamName))
		cache = redisClient
	}

	// Turn archive
	var archive repository.TurnRepository
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		turnRepo := postgres.NewTurnRepo(db)
		orch.SetArchive(turnRepo)
		archive = turnRepo
	}

	// Visualization server
	var srv *http.Server
	if cfg.VizPort != "" {
		hub := handler.NewHub()
		sinks = append(sinks, hub)
		srv = newVizServer(cfg, orch, archive, cache, hub)

		go func() {
			log.Info().Str("port", cfg.VizPort).Msg("Visualization server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("Server error")
			}
		}()
	}

	if len(sinks) > 0 {
		orch.SetBroadcaster(sinks)
	}
	reporter := service.NewStatusReporter(orch, sinks, cfg.StatusInterval)
	go reporter.Start(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()

	runErr := orch.Run(ctx)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatal().Err(runErr).Msg("Agent failed")
	}
	log.Info().Msg("Agent stopped")
}

func newVizServer(cfg *config.Config, orch *bot.Orchestrator, archive repository.TurnRepository, cache repository.ReportCache, hub *handler.Hub) *http.Server {
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	viewerHandler := handler.NewViewerHandler(jwtMgr, cfg.ViewerKey)
	reportHandler := handler.NewReportHandler(orch, archive, hub)
	if cache != nil {
		reportHandler.SetCache(cache, cfg.TeamName)
	}
	wsHandler := handler.NewWSHandler(hub, jwtMgr, orch)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", reportHandler.Health)

	// Auth (public)
	mux.HandleFunc("POST /auth/viewer", viewerHandler.Login)
	mux.HandleFunc("POST /auth/refresh", viewerHandler.Refresh)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /report", reportHandler.Latest)
	api.HandleFunc("GET /turns", reportHandler.Turns)
	api.HandleFunc("GET /session", reportHandler.Session)
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", auth.Middleware(jwtMgr)(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	root := middleware.Chain(mux, middleware.Recover, middleware.Logger, middleware.CORS("*"), middleware.JSON)
	return &http.Server{
		Addr:         ":" + cfg.VizPort,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
