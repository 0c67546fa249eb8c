// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/handlers"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/federated"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/session"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/token"
	"codeberg.org/oliverandrich/assistant-hub/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	identity *federated.Identity
	verifier string
}

func (p *fakeProvider) Name() string { return "google" }

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://idp.example/authorize?" + url.Values{"state": {state}, "v": {verifier}}.Encode()
}

func (p *fakeProvider) FetchIdentity(_ context.Context, code, verifier string) (*federated.Identity, error) {
	p.verifier = verifier
	if code != "good-code" {
		return nil, federated.ErrProvider
	}
	return p.identity, nil
}

type federatedAPI struct {
	e        *echo.Echo
	repo     *repository.Repository
	provider *fakeProvider
}

func newFederatedAPI(t *testing.T, configured bool) *federatedAPI {
	t.Helper()
	_, repo := testutil.NewTestDB(t)

	tokens, err := token.NewService(&config.TokenConfig{
		Secret:     "handler-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	states, err := session.NewManager(&config.SessionConfig{
		StateCookieName: "_oauth_state",
		StateMaxAge:     600,
		HashKey:         "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}, false)
	require.NoError(t, err)

	provider := &fakeProvider{identity: &federated.Identity{
		ExternalID:    "g-123",
		Email:         "ada@example.com",
		DisplayName:   "Ada",
		EmailVerified: true,
	}}

	var p federated.Provider
	if configured {
		p = provider
	}
	h := handlers.NewFederated(federated.NewBridge(repo, tokens), p, states, "https://app.example/")

	e := echo.New()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.GET("/auth/google", h.Start)
	e.GET("/auth/google/callback", h.Callback)

	return &federatedAPI{e: e, repo: repo, provider: provider}
}

// start runs the first leg and returns the state cookie and state value.
func (a *federatedAPI) start(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "idp.example", location.Host)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	cookie := cookieNamed(rec, "_oauth_state")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	return cookie, state
}

func (a *federatedAPI) callback(query url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query.Encode(), nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func redirectTarget(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	u, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	require.NoError(t, err)
	return u
}

func TestFederated_NotConfigured(t *testing.T) {
	a := newFederatedAPI(t, false)

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestFederated_SignInCreatesAccount(t *testing.T) {
	a := newFederatedAPI(t, true)
	cookie, state := a.start(t)

	rec := a.callback(url.Values{"state": {state}, "code": {"good-code"}}, cookie)

	target := redirectTarget(t, rec)
	assert.Equal(t, "app.example", target.Host)
	assert.Equal(t, "/auth/callback", target.Path)
	assert.NotEmpty(t, target.Query().Get("token"))
	assert.NotEmpty(t, a.provider.verifier)
	assert.Nil(t, cookieNamed(rec, "token"))

	cleared := cookieNamed(rec, "_oauth_state")
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	account, err := a.repo.GetAccountByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, account.IsVerified)
}

func TestFederated_CallbackFailures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*fakeProvider)
		query      func(state string) url.Values
		withCookie bool
		wantError  string
	}{
		{
			name:       "state mismatch",
			query:      func(string) url.Values { return url.Values{"state": {"forged"}, "code": {"good-code"}} },
			withCookie: true,
			wantError:  "invalid_state",
		},
		{
			name:      "missing cookie",
			query:     func(s string) url.Values { return url.Values{"state": {s}, "code": {"good-code"}} },
			wantError: "invalid_state",
		},
		{
			name:       "user denied",
			query:      func(s string) url.Values { return url.Values{"state": {s}, "error": {"access_denied"}} },
			withCookie: true,
			wantError:  "access_denied",
		},
		{
			name:       "exchange failed",
			query:      func(s string) url.Values { return url.Values{"state": {s}, "code": {"bad-code"}} },
			withCookie: true,
			wantError:  "provider_error",
		},
		{
			name:       "unverified email",
			setup:      func(p *fakeProvider) { p.identity.EmailVerified = false },
			query:      func(s string) url.Values { return url.Values{"state": {s}, "code": {"good-code"}} },
			withCookie: true,
			wantError:  "email_not_verified",
		},
		{
			name:       "incomplete identity",
			setup:      func(p *fakeProvider) { p.identity.ExternalID = "" },
			query:      func(s string) url.Values { return url.Values{"state": {s}, "code": {"good-code"}} },
			withCookie: true,
			wantError:  "incomplete_identity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newFederatedAPI(t, true)
			if tt.setup != nil {
				tt.setup(a.provider)
			}
			cookie, state := a.start(t)
			if !tt.withCookie {
				cookie = nil
			}

			rec := a.callback(tt.query(state), cookie)

			target := redirectTarget(t, rec)
			assert.Equal(t, "/signin", target.Path)
			assert.Equal(t, tt.wantError, target.Query().Get("error"))
		})
	}
}

func TestFederated_IdentityConflict(t *testing.T) {
	a := newFederatedAPI(t, true)
	existing := testutil.NewTestAccount(t, a.repo, "ada@example.com")
	require.NoError(t, a.repo.LinkFederatedIdentity(context.Background(), existing.ID, "g-other", "", "", time.Now().UTC()))

	cookie, state := a.start(t)
	rec := a.callback(url.Values{"state": {state}, "code": {"good-code"}}, cookie)

	target := redirectTarget(t, rec)
	assert.Equal(t, "identity_conflict", target.Query().Get("error"))
}
