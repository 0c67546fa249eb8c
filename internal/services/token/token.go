// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies signed access and refresh tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every reason a token is rejected.
var ErrInvalidToken = errors.New("invalid or expired token")

// Kind distinguishes access from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the token payload.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Kind Kind   `json:"typ"`
}

// Issued is a freshly signed token.
type Issued struct {
	Value     string
	ExpiresAt time.Time
}

// Service signs tokens with an HMAC secret.
type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a token service. An empty secret is replaced with a
// random one, which invalidates all tokens on restart.
func NewService(cfg *config.TokenConfig, opts ...Option) (*Service, error) {
	secret := []byte(cfg.Secret)
	if len(secret) == 0 {
		random := make([]byte, 32)
		if _, err := rand.Read(random); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		secret = []byte(hex.EncodeToString(random))
		slog.Warn("token secret not configured, using a random secret; tokens will not survive restarts")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive")
	}

	s := &Service{
		secret:     secret,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the lifetime of access tokens.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the lifetime of refresh tokens.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess signs an access token for subject.
func (s *Service) IssueAccess(subject, role string) (Issued, error) {
	return s.issue(subject, role, KindAccess, s.accessTTL)
}

// IssueRefresh signs a refresh token for subject.
func (s *Service) IssueRefresh(subject, role string) (Issued, error) {
	return s.issue(subject, role, KindRefresh, s.refreshTTL)
}

// VerifyAccess validates an access token.
func (s *Service) VerifyAccess(value string) (*Claims, error) {
	return s.verify(value, KindAccess)
}

// VerifyRefresh validates a refresh token.
func (s *Service) VerifyRefresh(value string) (*Claims, error) {
	return s.verify(value, KindRefresh)
}

func (s *Service) issue(subject, role string, kind Kind, ttl time.Duration) (Issued, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Role: role,
		Kind: kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return Issued{Value: signed, ExpiresAt: expiresAt}, nil
}

func (s *Service) verify(value string, kind Kind) (*Claims, error) {
	if value == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
