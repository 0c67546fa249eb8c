// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/database"
	"codeberg.org/oliverandrich/assistant-hub/internal/handlers"
	"codeberg.org/oliverandrich/assistant-hub/internal/i18n"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	authsvc "codeberg.org/oliverandrich/assistant-hub/internal/services/auth"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/email"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/federated"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/session"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/sweeper"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// App holds the wired HTTP server and its background jobs.
type App struct {
	Echo    *echo.Echo
	Sweeper *sweeper.Sweeper // nil when disabled
}

// Options replaces collaborators that are normally built from the config.
type Options struct {
	Notifier email.Notifier
	Google   federated.Provider
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"frontend_url", cfg.Server.FrontendURL,
	)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	app, err := New(cfg, db, Options{})
	if err != nil {
		return err
	}

	if app.Sweeper != nil {
		app.Sweeper.Start()
	}

	return startWithGracefulShutdown(ctx, app, cfg)
}

// New wires services, middleware and routes on top of db.
func New(cfg *config.Config, db *sqlx.DB, opts Options) (*App, error) {
	repo := repository.New(db)

	tokens, err := token.NewService(&cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init token service: %w", err)
	}

	notifier := opts.Notifier
	if notifier == nil {
		sender, senderErr := email.NewSender(&cfg.SMTP)
		if senderErr != nil {
			return nil, fmt.Errorf("failed to init mail sender: %w", senderErr)
		}
		notifier = email.NewService(sender, cfg.Server.FrontendURL)
	}

	states, err := session.NewManager(&cfg.Session, cfg.Cookie.Secure)
	if err != nil {
		return nil, fmt.Errorf("failed to init state cookies: %w", err)
	}

	google := opts.Google
	if google == nil && cfg.Google.Enabled() {
		google = federated.NewGoogleProvider(&cfg.Google)
	}

	svc := authsvc.NewService(repo, tokens, notifier, &cfg.Auth)
	cookies := session.NewCookies(&cfg.Cookie)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler
	e.Validator = handlers.NewValidator()

	setupMiddleware(e, cfg)
	setupRoutes(e, routeDeps{
		health:    handlers.New(db),
		auth:      handlers.NewAuth(svc, cookies),
		google:    handlers.NewFederated(federated.NewBridge(repo, tokens), google, states, cfg.Server.FrontendURL),
		authn:     svc,
		cookies:   cookies,
		rateLimit: cfg.Auth.RateLimit,
		rateBurst: cfg.Auth.RateBurst,
	})

	app := &App{Echo: e}
	if cfg.Sweeper.Schedule != "" {
		app.Sweeper, err = sweeper.New(repo, cfg.Sweeper.Schedule)
		if err != nil {
			return nil, err
		}
	}

	return app, nil
}

func startWithGracefulShutdown(ctx context.Context, app *App, cfg *config.Config) error {
	e := app.Echo

	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP to HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	quit, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-quit.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	if app.Sweeper != nil {
		app.Sweeper.Stop(shutdownCtx)
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}

// CreateAdmin creates an admin account or promotes an existing one.
func CreateAdmin(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	emailAddr := cmd.String("email")
	password := cmd.String("password")
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	tokens, err := token.NewService(&cfg.Token)
	if err != nil {
		return err
	}
	svc := authsvc.NewService(repository.New(db), tokens, email.NewService(email.LogSender{}, cfg.Server.FrontendURL), &cfg.Auth)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	account, err := svc.EnsureAdmin(ctx, emailAddr, password, cmd.String("name"))
	if err != nil {
		return err
	}

	slog.Info("admin account ready", "account_id", account.ID)
	return nil
}

// RollbackMigration reverts the most recent schema migration.
func RollbackMigration(_ context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateDown(db.DB, database.DriverFor(cfg.Database.DSN)); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	slog.Info("rolled back last migration")
	return nil
}
