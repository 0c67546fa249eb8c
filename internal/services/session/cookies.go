// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/token"
)

// Cookies builds the HTTP-only cookies that carry access and refresh tokens.
type Cookies struct {
	cfg *config.CookieConfig
	now func() time.Time
}

func NewCookies(cfg *config.CookieConfig) *Cookies {
	return &Cookies{cfg: cfg, now: time.Now}
}

// AccessName is the name of the access token cookie.
func (c *Cookies) AccessName() string { return c.cfg.AccessName }

// RefreshName is the name of the refresh token cookie.
func (c *Cookies) RefreshName() string { return c.cfg.RefreshName }

// Access returns the cookie for an access token, living as long as the token.
func (c *Cookies) Access(t token.Issued) *http.Cookie {
	return c.build(c.cfg.AccessName, t)
}

// Refresh returns the cookie for a refresh token.
func (c *Cookies) Refresh(t token.Issued) *http.Cookie {
	return c.build(c.cfg.RefreshName, t)
}

// Clear returns cookies that remove both token cookies.
func (c *Cookies) Clear() []*http.Cookie {
	return []*http.Cookie{
		c.expired(c.cfg.AccessName),
		c.expired(c.cfg.RefreshName),
	}
}

// AccessToken reads the access token cookie from r.
func (c *Cookies) AccessToken(r *http.Request) string {
	return read(r, c.cfg.AccessName)
}

// RefreshToken reads the refresh token cookie from r.
func (c *Cookies) RefreshToken(r *http.Request) string {
	return read(r, c.cfg.RefreshName)
}

func (c *Cookies) build(name string, t token.Issued) *http.Cookie {
	maxAge := int(t.ExpiresAt.Sub(c.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     name,
		Value:    t.Value,
		Path:     "/",
		Domain:   c.cfg.Domain,
		Expires:  t.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *Cookies) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func read(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
