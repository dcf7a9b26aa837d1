package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/uploadq/internal/config"
)

// Token scopes
const (
	// UploadScope tokens are sent to the upload endpoint with each transfer
	UploadScope = "upload"

	// ControlScope tokens authorize calls to the daemon's control API
	ControlScope = "control"
)

// Claims are the validated contents of an upload token
type Claims struct {
	Scope     string
	Issuer    string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// scopedClaims defines the structure of JWT claims we use
type scopedClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenSource mints and validates HMAC-SHA256 signed tokens. Its
// BeforeUpload method plugs into upload.Options so every task carries a
// fresh upload token.
type TokenSource struct {
	signingKey []byte
	lifetime   time.Duration
	issuer     string
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration
	logger     *slog.Logger
}

// NewTokenSource creates a TokenSource from the auth configuration.
func NewTokenSource(cfg config.AuthConfig, logger *slog.Logger) (*TokenSource, error) {
	if len(cfg.TokenSecret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 characters")
	}
	if cfg.TokenLifetimeMinutes <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %d minutes", cfg.TokenLifetimeMinutes)
	}

	return &TokenSource{
		signingKey: []byte(cfg.TokenSecret),
		lifetime:   time.Duration(cfg.TokenLifetimeMinutes) * time.Minute,
		issuer:     cfg.Issuer,
		timeFunc:   time.Now,
		clockSkew:  time.Minute,
		logger:     logger.With("component", "token_source"),
	}, nil
}

// Token creates a signed upload token.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	return s.TokenFor(ctx, UploadScope)
}

// TokenFor creates a signed token carrying the given scope.
func (s *TokenSource) TokenFor(ctx context.Context, scope string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.timeFunc()
	claims := scopedClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		s.logger.Error("failed to sign token",
			"error", err,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", fmt.Errorf("failed to sign token with HMAC-SHA256: %w", err)
	}

	s.logger.Debug("token issued",
		"token_id", claims.ID,
		"scope", scope,
		"expiry", claims.ExpiresAt.Time)

	return signed, nil
}

// BeforeUpload adapts Token to upload.Options.BeforeUpload
func (s *TokenSource) BeforeUpload(ctx context.Context) (any, error) {
	return s.Token(ctx)
}

// Validate parses a token and returns its claims if it is valid and carries
// the given scope.
func (s *TokenSource) Validate(tokenString, scope string) (*Claims, error) {
	now := s.timeFunc()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&scopedClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(s.issuer),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		s.logger.Debug("token validation failed", "error", err)
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*scopedClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != scope {
		return nil, ErrWrongScope
	}

	return &Claims{
		Scope:     claims.Scope,
		Issuer:    claims.Issuer,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
