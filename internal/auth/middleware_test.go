package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr := NewJWTManager("test-secret")
	mgr.now = func() time.Time { return issued }

	access, _ := mgr.GenerateAccessToken("tablet-7")
	refresh, _ := mgr.GenerateRefreshToken("tablet-7")
	foreign, _ := NewJWTManager("other-secret").GenerateAccessToken("tablet-7")

	tests := []struct {
		name       string
		header     string
		at         time.Time
		wantCode   int
		wantViewer string
		wantError  string
	}{
		{"access token", "Bearer " + access, issued, http.StatusOK, "tablet-7", ""},
		{"lowercase scheme", "bearer " + access, issued, http.StatusOK, "tablet-7", ""},
		{"missing header", "", issued, http.StatusUnauthorized, "", ErrMissingToken.Error()},
		{"wrong scheme", "Token " + access, issued, http.StatusUnauthorized, "", "authorization header must be Bearer <token>"},
		{"scheme only", "Bearer", issued, http.StatusUnauthorized, "", "authorization header must be Bearer <token>"},
		{"blank token", "Bearer   ", issued, http.StatusUnauthorized, "", "authorization header must be Bearer <token>"},
		{"refresh token", "Bearer " + refresh, issued, http.StatusUnauthorized, "", "refresh tokens cannot be used for API access"},
		{"other secret", "Bearer " + foreign, issued, http.StatusUnauthorized, "", ErrInvalidToken.Error()},
		{"expired", "Bearer " + access, issued.Add(20 * time.Minute), http.StatusUnauthorized, "", ErrInvalidToken.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr.now = func() time.Time { return tt.at }
			var viewer string
			called := false
			h := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				viewer = ViewerIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/report", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				if !called || viewer != tt.wantViewer {
					t.Errorf("viewer = %q (called %v), want %q", viewer, called, tt.wantViewer)
				}
				return
			}
			if called {
				t.Error("next handler ran for a rejected request")
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %q", rec.Body.String())
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestViewerIDContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	if id := ViewerIDFromContext(req.Context()); id != "" {
		t.Errorf("expected no viewer, got %q", id)
	}
	ctx := WithViewerID(req.Context(), "tablet-1")
	if id := ViewerIDFromContext(ctx); id != "tablet-1" {
		t.Errorf("viewer = %q, want tablet-1", id)
	}
}
