// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/assistant-hub/internal/handlers"
	"codeberg.org/oliverandrich/assistant-hub/internal/i18n"
	authsvc "codeberg.org/oliverandrich/assistant-hub/internal/services/auth"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/password"
	"codeberg.org/oliverandrich/assistant-hub/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = i18n.Init()
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	h := handlers.New(db)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := handlers.New(fakePinger{err: errors.New("connection refused")})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{"throttled", authsvc.ErrResendThrottled, http.StatusTooManyRequests, authsvc.ErrResendThrottled.Error()},
		{"wrapped credentials", fmt.Errorf("sign in: %w", authsvc.ErrInvalidCredentials), http.StatusBadRequest, authsvc.ErrInvalidCredentials.Error()},
		{"email taken", authsvc.ErrEmailTaken, http.StatusBadRequest, authsvc.ErrEmailTaken.Error()},
		{"invalid secret", authsvc.ErrInvalidSecret, http.StatusBadRequest, authsvc.ErrInvalidSecret.Error()},
		{"not admin", authsvc.ErrNotAdmin, http.StatusUnauthorized, authsvc.ErrNotAdmin.Error()},
		{"session expired", authsvc.ErrSessionExpired, http.StatusUnauthorized, authsvc.ErrSessionExpired.Error()},
		{"weak password", &password.ValidationError{Message: "password must be at least 6 characters"}, http.StatusBadRequest, "password must be at least 6 characters"},
		{"echo http error", echo.NewHTTPError(http.StatusForbidden, "insufficient permissions"), http.StatusForbidden, "insufficient permissions"},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handlers.HTTPErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decode[handlers.ErrorResponse](t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestHTTPErrorHandler_HidesInternalDetails(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := echo.NewHTTPError(http.StatusInternalServerError, "select * from accounts failed").
		SetInternal(errors.New("syntax error"))
	handlers.HTTPErrorHandler(err, c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "accounts")
}

func TestHTTPErrorHandler_Head(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handlers.HTTPErrorHandler(authsvc.ErrInvalidCode, c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestValidator(t *testing.T) {
	v := handlers.NewValidator()

	tests := []struct {
		name    string
		req     any
		wantMsg string
	}{
		{"missing email", &handlers.SignInRequest{Password: "x"}, "email is required"},
		{"missing password", &handlers.SignInRequest{Email: "a@b.c"}, "password is required"},
		{"bad role", &handlers.InviteUserRequest{Email: "a@b.c", Role: "owner"}, "role must be one of: admin user"},
		{"resend without target", &handlers.ResendVerificationRequest{}, "email is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)

			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Equal(t, tt.wantMsg, he.Message)
		})
	}

	assert.NoError(t, v.Validate(&handlers.InviteUserRequest{Email: "a@b.c"}))
	assert.NoError(t, v.Validate(&handlers.ResendVerificationRequest{UserID: "acc-1"}))
}
