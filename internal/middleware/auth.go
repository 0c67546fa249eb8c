// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the echo middleware of the HTTP surface.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"codeberg.org/oliverandrich/assistant-hub/internal/auth"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	authsvc "codeberg.org/oliverandrich/assistant-hub/internal/services/auth"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Authenticator resolves tokens to accounts.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.Account, error)
	Refresh(ctx context.Context, refreshToken string) (*authsvc.Session, error)
}

// Authenticate loads the account behind the access token of the request into
// the request context. The token comes from the Authorization header, then
// the access cookie. When neither is valid, a valid refresh cookie mints
// a new access token and re-sets the access cookie. Otherwise the request is
// rejected with 401.
func Authenticate(authn Authenticator, cookies *session.Cookies) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			// The header is tried first; a stale header must not shadow a valid cookie.
			for _, accessToken := range []string{bearerToken(req), cookies.AccessToken(req)} {
				if accessToken == "" {
					continue
				}
				account, err := authn.Authenticate(ctx, accessToken)
				if err == nil {
					return serve(c, next, account)
				}
				if !errors.Is(err, authsvc.ErrSessionExpired) {
					return err
				}
			}

			refreshToken := cookies.RefreshToken(req)
			if refreshToken == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			sess, err := authn.Refresh(ctx, refreshToken)
			if err != nil {
				if errors.Is(err, authsvc.ErrSessionExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, authsvc.ErrSessionExpired.Error())
				}
				return err
			}

			slog.Debug("access_token_refreshed", "account_id", sess.Account.ID)
			c.SetCookie(cookies.Access(sess.Access))
			return serve(c, next, sess.Account)
		}
	}
}

// RequireRole rejects authenticated accounts whose role is not listed with 403.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			account := auth.GetAccount(c.Request().Context())
			if account == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !slices.Contains(roles, account.Role) {
				slog.Warn("access_denied", "account_id", account.ID, "role", account.Role, "path", c.Path())
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
			}
			return next(c)
		}
	}
}

func serve(c echo.Context, next echo.HandlerFunc, account *models.Account) error {
	c.SetRequest(c.Request().WithContext(auth.SetAccount(c.Request().Context(), account)))
	return next(c)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(echo.HeaderAuthorization)
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
