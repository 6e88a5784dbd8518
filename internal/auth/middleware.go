package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type viewerKey struct{}

// Middleware admits requests carrying a viewer access token in the
// Authorization header and stores the viewer ID on the request context.
// Refresh tokens are refused so a leaked refresh token cannot read reports.
func Middleware(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, err.Error())
				return
			}
			claims, err := jwtMgr.ValidateToken(token)
			switch {
			case errors.Is(err, ErrWrongKind):
				unauthorized(w, "refresh tokens cannot be used for API access")
				return
			case err != nil:
				unauthorized(w, ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewerID(r.Context(), claims.ViewerID)))
		})
	}
}

// bearerToken extracts the token from a "Bearer <token>" header value.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", errors.New("authorization header must be Bearer <token>")
	}
	return token, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="colony-agent"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// WithViewerID returns a context carrying the viewer ID.
func WithViewerID(ctx context.Context, viewerID string) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewerID)
}

// ViewerIDFromContext returns the authenticated viewer ID, or "".
func ViewerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(viewerKey{}).(string)
	return id
}
