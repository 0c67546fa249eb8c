// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/otp"
)

// ForgotPassword issues a reset secret for an active account and mails the link.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	account, err := s.repo.GetAccountByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account.Status != models.StatusActive {
		slog.Warn("reset_refused", "account_id", account.ID, "status", account.Status)
		return ErrAccountNotFound
	}

	secret, err := s.codes.Secret(s.cfg.ResetTTL)
	if err != nil {
		return err
	}

	err = s.repo.SetSecret(ctx, account.ID, models.PurposeReset, secret.Hash, secret.ExpiresAt, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to store reset secret: %w", err)
	}

	slog.Info("password_reset_requested", "account_id", account.ID)

	s.notify(ctx, "reset", account.ID, func() error {
		return s.notifier.SendPasswordReset(ctx, account.Email, secret.Plaintext)
	})
	return nil
}

// ResetPassword replaces the password of the account holding secret. Of two
// concurrent calls with the same secret exactly one succeeds.
func (s *Service) ResetPassword(ctx context.Context, secret, plaintext string) error {
	if err := s.validator.Validate(plaintext); err != nil {
		return err
	}

	account, err := s.findBySecret(ctx, models.PurposeReset, secret)
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}

	err = s.repo.ConsumeReset(ctx, account.ID, otp.Hash(secret), passwordHash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			slog.Warn("reset_failed", "account_id", account.ID, "reason", "already_consumed")
			return ErrInvalidSecret
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	slog.Info("password_reset", "account_id", account.ID)

	s.notify(ctx, "changed", account.ID, func() error {
		return s.notifier.SendPasswordChanged(ctx, account.Email)
	})
	return nil
}
