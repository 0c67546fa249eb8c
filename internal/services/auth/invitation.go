// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/otp"
)

// Invitation is the read-only view of a pending invitation.
type Invitation struct {
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// InviteUser creates an invited account without a password and mails the
// invitation link. An empty role means RoleUser.
func (s *Service) InviteUser(ctx context.Context, actor *models.Account, emailAddr, role string) (*models.Account, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, ErrNotAdmin
	}

	addr, err := parseEmail(emailAddr)
	if err != nil {
		return nil, err
	}

	invitedRole := models.RoleUser
	if strings.TrimSpace(role) != "" {
		parsed, ok := models.ParseRole(role)
		if !ok {
			return nil, ErrInvalidRole
		}
		invitedRole = parsed
	}

	if err := s.ensureEmailFree(ctx, addr); err != nil {
		return nil, err
	}

	secret, err := s.codes.Secret(s.cfg.InvitationTTL)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	purpose := models.PurposeInvite
	account := &models.Account{
		ID:              newID(),
		Email:           addr,
		Role:            invitedRole,
		Status:          models.StatusInvited,
		IsVerified:      false,
		SecretPurpose:   &purpose,
		SecretHash:      &secret.Hash,
		SecretExpiresAt: &secret.ExpiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	slog.Info("invitation_created", "account_id", account.ID, "invited_by", actor.ID, "role", invitedRole)

	s.notify(ctx, "invitation", account.ID, func() error {
		return s.notifier.SendInvitation(ctx, addr, invitedRole, secret.Plaintext)
	})

	return account, nil
}

// ValidateInvitation reports the email and role behind a live invitation secret.
func (s *Service) ValidateInvitation(ctx context.Context, secret string) (*Invitation, error) {
	account, err := s.findBySecret(ctx, models.PurposeInvite, secret)
	if err != nil {
		return nil, err
	}
	return &Invitation{
		Email:     account.Email,
		Role:      account.Role,
		ExpiresAt: *account.SecretExpiresAt,
	}, nil
}

// AcceptInvitation completes an invitation with a name and password. The role
// chosen by the inviting admin is kept.
func (s *Service) AcceptInvitation(ctx context.Context, secret, name, plaintext string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := s.validator.Validate(plaintext); err != nil {
		return nil, err
	}

	account, err := s.findBySecret(ctx, models.PurposeInvite, secret)
	if err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	err = s.repo.ConsumeInvitation(ctx, account.ID, otp.Hash(secret), name, passwordHash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			slog.Warn("invitation_failed", "account_id", account.ID, "reason", "already_consumed")
			return nil, ErrInvalidSecret
		}
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	slog.Info("invitation_accepted", "account_id", account.ID)
	return s.repo.GetAccountByID(ctx, account.ID)
}

func (s *Service) findBySecret(ctx context.Context, purpose models.SecretPurpose, secret string) (*models.Account, error) {
	if len(otp.Normalize(secret)) != otp.SecretBytes*2 {
		return nil, ErrInvalidSecret
	}
	account, err := s.repo.FindBySecret(ctx, purpose, otp.Hash(secret), s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrAmbiguous) {
			return nil, ErrInvalidSecret
		}
		return nil, fmt.Errorf("failed to look up secret: %w", err)
	}
	return account, nil
}
