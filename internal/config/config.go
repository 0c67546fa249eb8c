// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Token    TokenConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	Google   GoogleConfig
	Sweeper  SweeperConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // Directory for the ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	FrontendURL string // SPA origin; CORS and OAuth redirects target it
	MaxBodySize int    // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string // SQLite path or postgres:// URL
}

// SessionConfig holds the keys for short-lived signed cookies (OAuth state).
type SessionConfig struct { //nolint:govet // fieldalignment not critical
	StateCookieName string
	StateMaxAge     int    // seconds
	HashKey         string // 32-byte hex string for HMAC signing
	BlockKey        string // 32-byte hex string for AES encryption (optional)
}

// CookieConfig controls the access and refresh token cookies.
type CookieConfig struct { //nolint:govet // fieldalignment not critical
	AccessName  string
	RefreshName string
	Domain      string
	Secure      bool
}

type TokenConfig struct { //nolint:govet // fieldalignment not critical
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	BcryptCost        int
	MinPasswordLength int
	VerificationTTL   time.Duration
	InvitationTTL     time.Duration
	ResetTTL          time.Duration
	ResendCooldown    time.Duration
	RateLimit         float64 // requests per second per IP on /auth
	RateBurst         int
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether outgoing mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether Google sign-in is configured.
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type SweeperConfig struct {
	Schedule string // cron expression, empty disables the sweeper
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			FrontendURL: cmd.String("frontend-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			StateCookieName: cmd.String("state-cookie-name"),
			StateMaxAge:     int(cmd.Int("state-max-age")),
			HashKey:         cmd.String("session-hash-key"),
			BlockKey:        cmd.String("session-block-key"),
		},
		Cookie: CookieConfig{
			AccessName:  cmd.String("access-cookie-name"),
			RefreshName: cmd.String("refresh-cookie-name"),
			Domain:      cmd.String("cookie-domain"),
			Secure:      cmd.Bool("cookie-secure"),
		},
		Token: TokenConfig{
			Secret:     cmd.String("token-secret"),
			Issuer:     cmd.String("token-issuer"),
			AccessTTL:  cmd.Duration("access-token-ttl"),
			RefreshTTL: cmd.Duration("refresh-token-ttl"),
		},
		Auth: AuthConfig{
			BcryptCost:        int(cmd.Int("bcrypt-cost")),
			MinPasswordLength: int(cmd.Int("min-password-length")),
			VerificationTTL:   cmd.Duration("verification-ttl"),
			InvitationTTL:     cmd.Duration("invitation-ttl"),
			ResetTTL:          cmd.Duration("reset-ttl"),
			ResendCooldown:    cmd.Duration("resend-cooldown"),
			RateLimit:         cmd.Float("auth-rate-limit"),
			RateBurst:         int(cmd.Int("auth-rate-burst")),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Google: GoogleConfig{
			ClientID:     cmd.String("google-client-id"),
			ClientSecret: cmd.String("google-client-secret"),
			RedirectURL:  cmd.String("google-redirect-url"),
		},
		Sweeper: SweeperConfig{
			Schedule: cmd.String("sweep-schedule"),
		},
	}

	applyDefaults(cfg)

	return cfg
}

// applyDefaults fills values derived from other settings.
func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = cfg.Server.BaseURL
	}
	cfg.Server.FrontendURL = strings.TrimSuffix(cfg.Server.FrontendURL, "/")

	if strings.HasPrefix(cfg.Server.BaseURL, "https://") {
		cfg.Cookie.Secure = true
	}

	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = cfg.Server.BaseURL + "/auth/google/callback"
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	useTLS := shouldUseTLS(mode, host)

	scheme := "http"
	if useTLS {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}
