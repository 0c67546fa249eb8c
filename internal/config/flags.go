// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"time"

	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"
)

func Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, serverFlags()...)
	flags = append(flags, tlsFlags()...)
	flags = append(flags, securityFlags()...)
	flags = append(flags, authFlags()...)
	flags = append(flags, mailFlags()...)
	flags = append(flags, googleFlags()...)
	return flags
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.StringFlag{
			Name:    "frontend-url",
			Usage:   "Origin of the web frontend (defaults to base_url)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("FRONTEND_URL"), toml.TOML("server.frontend_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN (SQLite path or postgres:// URL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "sweep-schedule",
			Value:   "@every 1h",
			Usage:   "Cron schedule for purging expired one-time secrets (empty disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SWEEP_SCHEDULE"), toml.TOML("sweeper.schedule", configFile)),
		},
	}
}

func tlsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_MODE"), toml.TOML("tls.mode", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for the ACME certificate cache",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_DIR"), toml.TOML("tls.cert_dir", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_EMAIL"), toml.TOML("tls.email", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_FILE"), toml.TOML("tls.cert_file", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_KEY_FILE"), toml.TOML("tls.key_file", configFile)),
		},
	}
}

func securityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "HMAC secret for access and refresh tokens (auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_SECRET"), toml.TOML("token.secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "token-issuer",
			Value:   "assistant-hub",
			Usage:   "Issuer claim for tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_ISSUER"), toml.TOML("token.issuer", configFile)),
		},
		&cli.DurationFlag{
			Name:    "access-token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of access tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACCESS_TOKEN_TTL"), toml.TOML("token.access_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "refresh-token-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of refresh tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REFRESH_TOKEN_TTL"), toml.TOML("token.refresh_ttl", configFile)),
		},
		&cli.StringFlag{
			Name:    "access-cookie-name",
			Value:   "token",
			Usage:   "Cookie carrying the access token",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ACCESS_COOKIE_NAME"), toml.TOML("cookie.access_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "refresh-cookie-name",
			Value:   "refresh_token",
			Usage:   "Cookie carrying the refresh token",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REFRESH_COOKIE_NAME"), toml.TOML("cookie.refresh_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "cookie-domain",
			Usage:   "Domain attribute for auth cookies",
			Sources: cli.NewValueSourceChain(cli.EnvVar("COOKIE_DOMAIN"), toml.TOML("cookie.domain", configFile)),
		},
		&cli.BoolFlag{
			Name:    "cookie-secure",
			Usage:   "Force the Secure attribute on auth cookies (implied by an https base URL)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("COOKIE_SECURE"), toml.TOML("cookie.secure", configFile)),
		},
		&cli.StringFlag{
			Name:    "state-cookie-name",
			Value:   "_oauth_state",
			Usage:   "Cookie carrying the signed OAuth state",
			Sources: cli.NewValueSourceChain(cli.EnvVar("STATE_COOKIE_NAME"), toml.TOML("session.state_cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "state-max-age",
			Value:   600,
			Usage:   "OAuth state cookie max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("STATE_MAX_AGE"), toml.TOML("session.state_max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Signing key for state cookies (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Encryption key for state cookies (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
	}
}

func authFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   bcrypt.DefaultCost,
			Usage:   "bcrypt work factor for password hashes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BCRYPT_COST"), toml.TOML("auth.bcrypt_cost", configFile)),
		},
		&cli.IntFlag{
			Name:    "min-password-length",
			Value:   6,
			Usage:   "Minimum password length",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MIN_PASSWORD_LENGTH"), toml.TOML("auth.min_password_length", configFile)),
		},
		&cli.DurationFlag{
			Name:    "verification-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of email verification codes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("VERIFICATION_TTL"), toml.TOML("auth.verification_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "invitation-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Lifetime of invitation links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("INVITATION_TTL"), toml.TOML("auth.invitation_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reset-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of password reset links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_TTL"), toml.TOML("auth.reset_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "resend-cooldown",
			Value:   time.Minute,
			Usage:   "Minimum interval between verification code resends",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESEND_COOLDOWN"), toml.TOML("auth.resend_cooldown", configFile)),
		},
		&cli.FloatFlag{
			Name:    "auth-rate-limit",
			Value:   5,
			Usage:   "Requests per second per client on /auth (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_RATE_LIMIT"), toml.TOML("auth.rate_limit", configFile)),
		},
		&cli.IntFlag{
			Name:    "auth-rate-burst",
			Value:   20,
			Usage:   "Burst size for the /auth rate limiter",
			Sources: cli.NewValueSourceChain(cli.EnvVar("AUTH_RATE_BURST"), toml.TOML("auth.rate_burst", configFile)),
		},
	}
}

func mailFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (empty logs mails instead of sending them)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Assistant Hub",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
	}
}

func googleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "google-client-id",
			Usage:   "Google OAuth client ID (empty disables Google sign-in)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GOOGLE_CLIENT_ID"), toml.TOML("google.client_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "google-client-secret",
			Usage:   "Google OAuth client secret",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GOOGLE_CLIENT_SECRET"), toml.TOML("google.client_secret", configFile)),
		},
		&cli.StringFlag{
			Name:    "google-redirect-url",
			Usage:   "OAuth callback URL (defaults to base_url + /auth/google/callback)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GOOGLE_REDIRECT_URL"), toml.TOML("google.redirect_url", configFile)),
		},
	}
}
