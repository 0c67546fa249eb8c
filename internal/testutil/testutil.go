// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/database"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of accounts created by NewTestAccount.
const TestPassword = "correct-horse"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// AccountOption customizes an account created by NewTestAccount.
type AccountOption func(*models.Account)

// AsAdmin gives the account the admin role.
func AsAdmin() AccountOption {
	return func(a *models.Account) { a.Role = models.RoleAdmin }
}

// Unverified leaves the account pending email verification.
func Unverified() AccountOption {
	return func(a *models.Account) {
		a.IsVerified = false
		a.Status = models.StatusPendingVerification
	}
}

// WithoutPassword creates an account that cannot sign in with a password.
func WithoutPassword() AccountOption {
	return func(a *models.Account) { a.PasswordHash = nil }
}

// WithSecret installs a pending one-time secret (given as its stored hash).
func WithSecret(purpose models.SecretPurpose, hash string, expiresAt time.Time) AccountOption {
	return func(a *models.Account) {
		a.SecretPurpose = &purpose
		a.SecretHash = &hash
		a.SecretExpiresAt = &expiresAt
	}
}

// NewTestAccount creates a verified, active account with TestPassword.
func NewTestAccount(t *testing.T, repo *repository.Repository, email string, opts ...AccountOption) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        models.NormalizeEmail(email),
		PasswordHash: models.StringPtr(string(hash)),
		Role:         models.RoleUser,
		Status:       models.StatusActive,
		IsVerified:   true,
		Name:         models.StringPtr("Test User"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(account)
	}

	require.NoError(t, repo.CreateAccount(context.Background(), account))
	return account
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

// Clock is a settable time source for services that accept one.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed UTC instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
