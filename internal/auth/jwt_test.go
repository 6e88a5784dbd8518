package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-123")
	token, err := mgr.GenerateAccessToken("viewer-42")
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.ViewerID != "viewer-42" {
		t.Errorf("expected viewer_id=viewer-42, got %s", claims.ViewerID)
	}
	if claims.Subject != "viewer-42" {
		t.Errorf("expected subject=viewer-42, got %s", claims.Subject)
	}
	if claims.Kind != KindAccess {
		t.Errorf("expected kind=%s, got %s", KindAccess, claims.Kind)
	}
}

func TestRefreshTokenKinds(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-123")
	refresh, err := mgr.GenerateRefreshToken("viewer-99")
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	claims, err := mgr.ValidateRefreshToken(refresh)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if claims.ViewerID != "viewer-99" {
		t.Errorf("expected viewer_id=viewer-99, got %s", claims.ViewerID)
	}

	if _, err := mgr.ValidateToken(refresh); !errors.Is(err, ErrWrongKind) {
		t.Errorf("refresh token used as access: expected ErrWrongKind, got %v", err)
	}

	access, _ := mgr.GenerateAccessToken("viewer-99")
	if _, err := mgr.ValidateRefreshToken(access); !errors.Is(err, ErrWrongKind) {
		t.Errorf("access token used as refresh: expected ErrWrongKind, got %v", err)
	}
}

func TestGenerateTokenPair(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-123")
	pair, err := mgr.GenerateTokenPair("viewer-7")
	if err != nil {
		t.Fatalf("generate token pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty tokens")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens should be different")
	}
	if pair.ExpiresIn != 900 {
		t.Errorf("expected expires_in=900, got %d", pair.ExpiresIn)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	mgr1 := NewJWTManager("secret-one")
	mgr2 := NewJWTManager("secret-two")

	token, err := mgr1.GenerateAccessToken("viewer-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := mgr2.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken with wrong secret, got %v", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	mgr := NewJWTManager("test-secret")
	for _, tok := range []string{"not-a-jwt", ""} {
		if _, err := mgr.ValidateToken(tok); err == nil {
			t.Errorf("expected error for token %q", tok)
		}
	}
}

func TestExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret")
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return issued }

	token, err := mgr.GenerateAccessToken("viewer-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := mgr.ValidateToken(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	mgr.now = func() time.Time { return issued.Add(16 * time.Minute) }
	if _, err := mgr.ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}
