// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
)

// ListTeam returns every account, newest first.
func (s *Service) ListTeam(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount removes another account. Admins cannot delete themselves.
func (s *Service) DeleteAccount(ctx context.Context, actor *models.Account, id string) error {
	if actor == nil || !actor.IsAdmin() {
		return ErrNotAdmin
	}
	if actor.ID == id {
		return ErrSelfModification
	}

	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	slog.Info("account_deleted", "account_id", id, "deleted_by", actor.ID)
	return nil
}

// UpdateRole changes the role of another account.
func (s *Service) UpdateRole(ctx context.Context, actor *models.Account, id, role string) (*models.Account, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}
	if actor.ID == id {
		return nil, ErrSelfModification
	}
	newRole, ok := models.ParseRole(role)
	if !ok {
		return nil, ErrInvalidRole
	}

	if err := s.repo.UpdateRole(ctx, id, newRole, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	slog.Info("role_updated", "account_id", id, "role", newRole, "updated_by", actor.ID)
	return s.repo.GetAccountByID(ctx, id)
}

// EnsureAdmin creates an active admin account, or promotes and re-passwords
// the existing account with that email.
func (s *Service) EnsureAdmin(ctx context.Context, emailAddr, plaintext, name string) (*models.Account, error) {
	addr, err := parseEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(plaintext); err != nil {
		return nil, err
	}
	passwordHash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	existing, err := s.repo.GetAccountByEmail(ctx, addr)
	switch {
	case err == nil:
		if err := s.repo.PromoteToAdmin(ctx, existing.ID, passwordHash, now); err != nil {
			return nil, fmt.Errorf("failed to promote account: %w", err)
		}
		slog.Info("admin_promoted", "account_id", existing.ID)
		return s.repo.GetAccountByID(ctx, existing.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = addr
	}
	account := &models.Account{
		ID:           newID(),
		Email:        addr,
		PasswordHash: &passwordHash,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
		IsVerified:   true,
		Name:         models.StringPtr(strings.TrimSpace(name)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin_created", "account_id", account.ID)
	return account, nil
}
