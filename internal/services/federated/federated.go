// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package federated signs users in through an external identity provider
// and links the external identity to a local account by email address.
package federated

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/token"
	"github.com/google/uuid"
)

var (
	ErrProvider           = errors.New("identity provider error")
	ErrIncompleteIdentity = errors.New("identity provider returned no id or email")
	ErrEmailNotVerified   = errors.New("email address is not verified by the identity provider")
	ErrIdentityConflict   = errors.New("email is already linked to a different external account")
)

// Identity is an assertion received from an identity provider.
type Identity struct {
	ExternalID    string
	Email         string
	DisplayName   string
	AvatarURL     string
	EmailVerified bool
}

// Provider runs the authorization-code flow of one identity provider.
type Provider interface {
	Name() string
	AuthCodeURL(state, verifier string) string
	FetchIdentity(ctx context.Context, code, verifier string) (*Identity, error)
}

// Bridge resolves external identities to local accounts.
type Bridge struct {
	repo   *repository.Repository
	tokens *token.Service
	now    func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

func NewBridge(repo *repository.Repository, tokens *token.Service, opts ...Option) *Bridge {
	b := &Bridge{repo: repo, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is a resolved account with a fresh access token.
type Result struct {
	Account *models.Account
	Access  token.Issued
	Created bool
}

// SignIn resolves id and issues an access token for the account.
func (b *Bridge) SignIn(ctx context.Context, id *Identity) (*Result, error) {
	account, created, err := b.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	access, err := b.tokens.IssueAccess(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}

	if err := b.repo.TouchLastActive(ctx, account.ID, b.now().UTC()); err != nil {
		slog.Error("failed to record last activity", "account_id", account.ID, "error", err)
	}

	slog.Info("federated_signin_success", "account_id", account.ID, "created", created)
	return &Result{Account: account, Access: access, Created: created}, nil
}

// Resolve finds the account for id, linking or creating it as needed.
// Lookup order is the external id first, then the email address.
func (b *Bridge) Resolve(ctx context.Context, id *Identity) (*models.Account, bool, error) {
	if id == nil || strings.TrimSpace(id.ExternalID) == "" || strings.TrimSpace(id.Email) == "" {
		return nil, false, ErrIncompleteIdentity
	}
	if !id.EmailVerified {
		slog.Warn("federated_signin_failed", "reason", "email_not_verified")
		return nil, false, ErrEmailNotVerified
	}

	account, err := b.lookup(ctx, id)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	account, err = b.create(ctx, id)
	if errors.Is(err, repository.ErrDuplicate) {
		// created concurrently by another callback
		account, err = b.lookup(ctx, id)
		return account, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

func (b *Bridge) lookup(ctx context.Context, id *Identity) (*models.Account, error) {
	account, err := b.repo.GetAccountByFederatedID(ctx, id.ExternalID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get account by external id: %w", err)
	}

	account, err = b.repo.GetAccountByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	if account.IsFederated() {
		slog.Warn("federated_signin_failed", "account_id", account.ID, "reason", "identity_conflict")
		return nil, ErrIdentityConflict
	}

	err = b.repo.LinkFederatedIdentity(ctx, account.ID, id.ExternalID, displayName(id), id.AvatarURL, b.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return b.recheckLinked(ctx, account.ID, id.ExternalID)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrIdentityConflict
		}
		return nil, fmt.Errorf("failed to link identity: %w", err)
	}

	slog.Info("federated_identity_linked", "account_id", account.ID)
	return b.repo.GetAccountByID(ctx, account.ID)
}

// recheckLinked handles a link that lost a race: it succeeds only if the
// winner linked the same external id.
func (b *Bridge) recheckLinked(ctx context.Context, accountID, externalID string) (*models.Account, error) {
	account, err := b.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account.FederatedID == nil || *account.FederatedID != externalID {
		return nil, ErrIdentityConflict
	}
	return account, nil
}

func (b *Bridge) create(ctx context.Context, id *Identity) (*models.Account, error) {
	now := b.now().UTC()
	externalID := id.ExternalID
	account := &models.Account{
		ID:          uuid.NewString(),
		Email:       models.NormalizeEmail(id.Email),
		Role:        models.RoleUser,
		Status:      models.StatusActive,
		IsVerified:  true,
		Name:        models.StringPtr(displayName(id)),
		FederatedID: &externalID,
		AvatarURL:   models.StringPtr(id.AvatarURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("federated_account_created", "account_id", account.ID)
	return account, nil
}

// displayName falls back to the email address so verified accounts always
// carry a name.
func displayName(id *Identity) string {
	if name := strings.TrimSpace(id.DisplayName); name != "" {
		return name
	}
	return models.NormalizeEmail(id.Email)
}
