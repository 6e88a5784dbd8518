package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing authorization token")
	ErrWrongKind    = errors.New("token kind not accepted here")
)

// Token kinds.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

const issuer = "colony-agent"

// Claims holds the JWT payload of a visualization viewer.
type Claims struct {
	ViewerID string `json:"viewer_id"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates viewer tokens.
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewJWTManager creates a JWTManager with the given secret.
func NewJWTManager(secret string) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  15 * time.Minute,
		refreshExpiry: 24 * time.Hour,
		now:           time.Now,
	}
}

func (m *JWTManager) sign(viewerID, kind string, expiry time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		ViewerID: viewerID,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   viewerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// GenerateAccessToken creates a short-lived access token for a viewer.
func (m *JWTManager) GenerateAccessToken(viewerID string) (string, error) {
	return m.sign(viewerID, KindAccess, m.accessExpiry)
}

// GenerateRefreshToken creates a long-lived refresh token.
func (m *JWTManager) GenerateRefreshToken(viewerID string) (string, error) {
	return m.sign(viewerID, KindRefresh, m.refreshExpiry)
}

// ValidateToken parses and validates an access token.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	return m.validate(tokenStr, KindAccess)
}

// ValidateRefreshToken parses and validates a refresh token.
func (m *JWTManager) ValidateRefreshToken(tokenStr string) (*Claims, error) {
	return m.validate(tokenStr, KindRefresh)
}

func (m *JWTManager) validate(tokenStr, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// TokenPair holds an access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// GenerateTokenPair creates both tokens for a viewer.
func (m *JWTManager) GenerateTokenPair(viewerID string) (*TokenPair, error) {
	access, err := m.GenerateAccessToken(viewerID)
	if err != nil {
		return nil, err
	}
	refresh, err := m.GenerateRefreshToken(viewerID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(m.accessExpiry.Seconds()),
	}, nil
}
