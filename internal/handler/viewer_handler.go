package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/internal/auth"
)

// ViewerHandler exchanges the shared viewer key for JWT tokens.
type ViewerHandler struct {
	jwtMgr    *auth.JWTManager
	viewerKey string
}

// NewViewerHandler creates a ViewerHandler.
func NewViewerHandler(jwtMgr *auth.JWTManager, viewerKey string) *ViewerHandler {
	return &ViewerHandler{jwtMgr: jwtMgr, viewerKey: viewerKey}
}

// Login handles POST /auth/viewer. Each login gets a fresh viewer ID.
func (h *ViewerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if h.viewerKey == "" || subtle.ConstantTimeCompare([]byte(req.Key), []byte(h.viewerKey)) != 1 {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Rejected viewer login")
		writeError(w, http.StatusUnauthorized, "invalid viewer key")
		return
	}

	viewerID := "viewer-" + uuid.NewString()
	if name := strings.TrimSpace(req.Name); name != "" {
		viewerID = name + "-" + uuid.NewString()[:8]
	}
	tokens, err := h.jwtMgr.GenerateTokenPair(viewerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}
	log.Info().Str("viewer", viewerID).Msg("Viewer logged in")
	writeJSON(w, http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh, exchanging a refresh token for a new pair.
func (h *ViewerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := h.jwtMgr.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	tokens, err := h.jwtMgr.GenerateTokenPair(claims.ViewerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}
