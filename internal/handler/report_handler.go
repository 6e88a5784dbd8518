package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/bot"
	"github.com/freeeve/colony-agent/internal/model"
	"github.com/freeeve/colony-agent/internal/repository"
)

// ReportSource exposes the agent's latest published report.
type ReportSource interface {
	Latest() *bot.TurnReport
	SessionID() string
}

// ReportHandler serves the agent's published state and its archive.
type ReportHandler struct {
	source  ReportSource
	archive repository.TurnRepository
	hub     *Hub
	cache   repository.ReportCache
	team    string
}

const cacheLookupTimeout = 2 * time.Second

// NewReportHandler creates a ReportHandler. archive may be nil.
func NewReportHandler(source ReportSource, archive repository.TurnRepository, hub *Hub) *ReportHandler {
	return &ReportHandler{source: source, archive: archive, hub: hub}
}

// SetCache makes Latest serve the team's cached report until this process
// has played its first turn.
func (h *ReportHandler) SetCache(cache repository.ReportCache, team string) {
	h.cache = cache
	h.team = team
}

// Health handles GET /healthz.
func (h *ReportHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":      true,
		"session": h.source.SessionID(),
	}
	if latest := h.source.Latest(); latest != nil {
		resp["status"] = latest.Status
		resp["turn"] = latest.Turn
	}
	if h.hub != nil {
		resp["viewers"] = h.hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Latest handles GET /api/v1/report.
func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	latest := h.source.Latest()
	if latest == nil || latest.Status == bot.StatusRegistering {
		if cached := h.cachedReport(r.Context()); cached != nil {
			w.Header().Set("X-Report-Source", "cache")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}
	if latest == nil {
		writeError(w, http.StatusServiceUnavailable, "agent has not started")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (h *ReportHandler) cachedReport(ctx context.Context) any {
	if h.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cacheLookupTimeout)
	defer cancel()
	raw, err := h.cache.GetLatest(ctx, h.team)
	if err != nil {
		log.Warn().Err(err).Str("team", h.team).Msg("Failed to read cached report")
		return nil
	}
	if raw == nil {
		return nil
	}
	return raw
}

// Turns handles GET /api/v1/turns?limit=N, listing archived turns of this session.
func (h *ReportHandler) Turns(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "turn archive disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	turns, err := h.archive.ListTurns(r.Context(), h.source.SessionID(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list turns")
		writeError(w, http.StatusInternalServerError, "failed to list turns")
		return
	}
	if turns == nil {
		turns = []model.TurnRecord{}
	}
	writeJSON(w, http.StatusOK, turns)
}

// Session handles GET /api/v1/session, summarizing this session's archive.
func (h *ReportHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "turn archive disabled")
		return
	}
	summary, err := h.archive.SessionSummary(r.Context(), h.source.SessionID())
	if err != nil {
		log.Error().Err(err).Msg("Failed to summarize session")
		writeError(w, http.StatusInternalServerError, "failed to summarize session")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "no turns archived yet")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
