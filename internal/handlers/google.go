// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/oliverandrich/assistant-hub/internal/services/federated"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/session"
	"github.com/labstack/echo/v4"
)

// FederatedHandlers runs the sign-in flow of one external identity provider.
type FederatedHandlers struct {
	bridge      *federated.Bridge
	provider    federated.Provider
	states      *session.Manager
	frontendURL string
}

// NewFederated creates handlers for provider. A nil provider means the flow
// is not configured and its routes answer 404.
func NewFederated(bridge *federated.Bridge, provider federated.Provider, states *session.Manager, frontendURL string) *FederatedHandlers {
	return &FederatedHandlers{
		bridge:      bridge,
		provider:    provider,
		states:      states,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// Start redirects the browser to the provider.
func (h *FederatedHandlers) Start(c echo.Context) error {
	if h.provider == nil {
		return echo.NewHTTPError(http.StatusNotFound, "federated sign-in is not configured")
	}

	state, cookie, err := h.states.Create(h.provider.Name())
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	return c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state.State, state.Verifier))
}

// Callback completes the flow and hands the access token to the frontend via
// a redirect. No token cookie is set here.
func (h *FederatedHandlers) Callback(c echo.Context) error {
	if h.provider == nil {
		return echo.NewHTTPError(http.StatusNotFound, "federated sign-in is not configured")
	}

	state := h.states.Parse(c.Request())
	c.SetCookie(h.states.Clear())

	if providerErr := c.QueryParam("error"); providerErr != "" {
		slog.Warn("federated_signin_failed", "provider", h.provider.Name(), "reason", providerErr)
		return h.fail(c, "access_denied")
	}

	if state == nil || state.Provider != h.provider.Name() ||
		subtle.ConstantTimeCompare([]byte(state.State), []byte(c.QueryParam("state"))) != 1 {
		slog.Warn("federated_signin_failed", "provider", h.provider.Name(), "reason", "invalid_state")
		return h.fail(c, "invalid_state")
	}

	code := c.QueryParam("code")
	if code == "" {
		return h.fail(c, "missing_code")
	}

	ctx := c.Request().Context()
	identity, err := h.provider.FetchIdentity(ctx, code, state.Verifier)
	if err != nil {
		slog.Error("federated_signin_failed", "provider", h.provider.Name(), "error", err)
		return h.fail(c, "provider_error")
	}

	result, err := h.bridge.SignIn(ctx, identity)
	if err != nil {
		switch {
		case errors.Is(err, federated.ErrIdentityConflict):
			return h.fail(c, "identity_conflict")
		case errors.Is(err, federated.ErrEmailNotVerified):
			return h.fail(c, "email_not_verified")
		case errors.Is(err, federated.ErrIncompleteIdentity):
			return h.fail(c, "incomplete_identity")
		}
		slog.Error("federated_signin_failed", "provider", h.provider.Name(), "error", err)
		return h.fail(c, "server_error")
	}

	target := h.frontendURL + "/auth/callback?" + url.Values{"token": {result.Access.Value}}.Encode()
	return c.Redirect(http.StatusFound, target)
}

func (h *FederatedHandlers) fail(c echo.Context, reason string) error {
	target := h.frontendURL + "/signin?" + url.Values{"error": {reason}}.Encode()
	return c.Redirect(http.StatusFound, target)
}
