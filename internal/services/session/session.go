// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session manages the cookies of a browser session: the signed OAuth
// state cookie and the access and refresh token cookies.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"github.com/gorilla/securecookie"
	"golang.org/x/oauth2"
)

// OAuthState is the round-trip data of an authorization-code flow.
type OAuthState struct {
	State     string
	Verifier  string
	Provider  string
	ExpiresAt time.Time
}

// Manager signs and verifies the OAuth state cookie.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
}

// NewManager creates a state cookie manager. Without a hash key a random one
// is generated, so pending sign-ins do not survive a restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("no session hash key configured, generating a random one")
		hashKey = securecookie.GenerateRandomKey(32)
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	maxAge := cfg.StateMaxAge
	if maxAge <= 0 {
		maxAge = 600
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(maxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	name := cfg.StateCookieName
	if name == "" {
		name = "_oauth_state"
	}

	return &Manager{codec: codec, name: name, maxAge: maxAge, secure: secure}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid session %s key: must be 32 bytes (64 hex characters), got %d bytes", kind, len(key))
	}
	return key, nil
}

// Create starts a flow for provider: a random state and PKCE verifier, and the
// cookie that carries them.
func (m *Manager) Create(provider string) (*OAuthState, *http.Cookie, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, nil, fmt.Errorf("failed to generate state: %w", err)
	}

	state := &OAuthState{
		State:     hex.EncodeToString(raw),
		Verifier:  oauth2.GenerateVerifier(),
		Provider:  provider,
		ExpiresAt: time.Now().Add(time.Duration(m.maxAge) * time.Second),
	}

	encoded, err := m.codec.Encode(m.name, state)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode state: %w", err)
	}

	return state, m.cookie(encoded, m.maxAge), nil
}

// Parse returns the state stored in the request, or nil if the cookie is
// missing, tampered with or expired.
func (m *Manager) Parse(r *http.Request) *OAuthState {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil
	}

	var state OAuthState
	if err := m.codec.Decode(m.name, cookie.Value, &state); err != nil {
		slog.Debug("oauth state cookie rejected", "error", err)
		return nil
	}
	if time.Now().After(state.ExpiresAt) {
		return nil
	}
	return &state
}

// Clear returns a cookie that removes the state cookie.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
