// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
)

const accountColumns = `id, email, password_hash, role, status, is_verified, name, federated_id, avatar_url,
	secret_purpose, secret_hash, secret_expires_at, last_code_resend_at, last_active_at, created_at, updated_at`

// liveSecret matches rows whose pending secret has the given purpose and hash and is unexpired.
const liveSecret = `secret_purpose = ? AND secret_hash = ? AND secret_expires_at > ?`

// clearSecret empties the one-time secret slot.
const clearSecret = `secret_purpose = NULL, secret_hash = NULL, secret_expires_at = NULL`

// CreateAccount inserts a new account. Returns ErrDuplicate if the email or
// federated identity is already taken.
func (r *Repository) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.Email, a.PasswordHash, a.Role, a.Status, a.IsVerified, a.Name, a.FederatedID, a.AvatarURL,
		a.SecretPurpose, a.SecretHash, utcPtr(a.SecretExpiresAt), utcPtr(a.LastCodeResendAt), utcPtr(a.LastActiveAt),
		a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	return wrapError(err)
}

// GetAccountByID retrieves an account by its ID.
func (r *Repository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	var a models.Account
	err := r.db.GetContext(ctx, &a, r.q(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &a, nil
}

// GetAccountByEmail retrieves an account by its (normalized) email address.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.db.GetContext(ctx, &a, r.q(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`),
		models.NormalizeEmail(email))
	if err != nil {
		return nil, wrapError(err)
	}
	return &a, nil
}

// GetAccountByFederatedID retrieves the account linked to an external identity.
func (r *Repository) GetAccountByFederatedID(ctx context.Context, federatedID string) (*models.Account, error) {
	var a models.Account
	err := r.db.GetContext(ctx, &a, r.q(`SELECT `+accountColumns+` FROM accounts WHERE federated_id = ?`), federatedID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &a, nil
}

// ListAccounts returns all accounts ordered by creation date (newest first).
func (r *Repository) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts, r.q(`SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, email`))
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// DeleteAccount removes an account.
func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM accounts WHERE id = ?`), id)
	if err := exactlyOne(res, err); err != nil {
		if err == ErrConditionFailed {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// UpdateRole changes the role of an account.
func (r *Repository) UpdateRole(ctx context.Context, id string, role models.Role, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts SET role = ?, updated_at = ? WHERE id = ?`),
		role, now.UTC(), id)
	if err := exactlyOne(res, err); err != nil {
		if err == ErrConditionFailed {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// PromoteToAdmin makes an account an active, verified admin with a new password.
func (r *Repository) PromoteToAdmin(ctx context.Context, id, passwordHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts
		SET role = ?, password_hash = ?, is_verified = ?, status = ?, `+clearSecret+`, updated_at = ?
		WHERE id = ?`),
		models.RoleAdmin, passwordHash, true, models.StatusActive, now.UTC(), id)
	if err := exactlyOne(res, err); err != nil {
		if err == ErrConditionFailed {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// TouchLastActive records a successful sign-in.
func (r *Repository) TouchLastActive(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts SET last_active_at = ? WHERE id = ?`), now.UTC(), id)
	return err
}

// FindBySecret returns the single account holding a live secret with the given
// purpose and hash. Expired secrets are treated as absent. More than one match
// yields ErrAmbiguous.
func (r *Repository) FindBySecret(ctx context.Context, purpose models.SecretPurpose, hash string, now time.Time) (*models.Account, error) {
	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts,
		r.q(`SELECT `+accountColumns+` FROM accounts WHERE `+liveSecret+` LIMIT 2`),
		purpose, hash, now.UTC())
	if err != nil {
		return nil, err
	}
	switch len(accounts) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &accounts[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

// FindBySecretForEmail is FindBySecret restricted to one email address.
func (r *Repository) FindBySecretForEmail(ctx context.Context, purpose models.SecretPurpose, hash, email string, now time.Time) (*models.Account, error) {
	var a models.Account
	err := r.db.GetContext(ctx, &a,
		r.q(`SELECT `+accountColumns+` FROM accounts WHERE email = ? AND `+liveSecret),
		models.NormalizeEmail(email), purpose, hash, now.UTC())
	if err != nil {
		return nil, wrapError(err)
	}
	return &a, nil
}

// SecretInUse reports whether any account holds a live secret with this purpose and hash.
func (r *Repository) SecretInUse(ctx context.Context, purpose models.SecretPurpose, hash string, now time.Time) (bool, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		r.q(`SELECT count(*) FROM accounts WHERE `+liveSecret), purpose, hash, now.UTC())
	return count > 0, err
}

// SetSecret replaces the pending secret of an account.
func (r *Repository) SetSecret(ctx context.Context, id string, purpose models.SecretPurpose, hash string, expiresAt, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		r.q(`UPDATE accounts SET secret_purpose = ?, secret_hash = ?, secret_expires_at = ?, updated_at = ? WHERE id = ?`),
		purpose, hash, expiresAt.UTC(), now.UTC(), id)
	if err := exactlyOne(res, err); err != nil {
		if err == ErrConditionFailed {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// RotateVerificationCode installs a new verification code on an account that
// is still pending verification, but only if the last resend happened at or
// before cutoff. Returns ErrConditionFailed when the throttle or the account
// state prevents it.
func (r *Repository) RotateVerificationCode(ctx context.Context, id, hash string, expiresAt, now, cutoff time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts
		SET secret_purpose = ?, secret_hash = ?, secret_expires_at = ?, last_code_resend_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND (last_code_resend_at IS NULL OR last_code_resend_at <= ?)`),
		models.PurposeVerify, hash, expiresAt.UTC(), now.UTC(), now.UTC(),
		id, models.StatusPendingVerification, cutoff.UTC())
	return exactlyOne(res, err)
}

// ConsumeVerification marks the account verified and active if its
// verification code is still live. The code is cleared in the same statement.
func (r *Repository) ConsumeVerification(ctx context.Context, id, hash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts
		SET is_verified = ?, status = ?, `+clearSecret+`, updated_at = ?
		WHERE id = ? AND `+liveSecret),
		true, models.StatusActive, now.UTC(),
		id, models.PurposeVerify, hash, now.UTC())
	return exactlyOne(res, err)
}

// ConsumeInvitation completes an invitation: name and password are set, the
// account becomes verified and active, the role stays as invited.
func (r *Repository) ConsumeInvitation(ctx context.Context, id, hash, name, passwordHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts
		SET name = ?, password_hash = ?, is_verified = ?, status = ?, `+clearSecret+`, updated_at = ?
		WHERE id = ? AND `+liveSecret),
		name, passwordHash, true, models.StatusActive, now.UTC(),
		id, models.PurposeInvite, hash, now.UTC())
	return exactlyOne(res, err)
}

// ConsumeReset replaces the password hash if the reset secret is still live.
func (r *Repository) ConsumeReset(ctx context.Context, id, hash, passwordHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts
		SET password_hash = ?, `+clearSecret+`, updated_at = ?
		WHERE id = ? AND `+liveSecret),
		passwordHash, now.UTC(),
		id, models.PurposeReset, hash, now.UTC())
	return exactlyOne(res, err)
}

// LinkFederatedIdentity attaches an external identity to an account that has
// none yet. The account becomes verified and active; a pending secret is
// dropped; name and avatar are only filled when empty. Role and password hash
// are left untouched.
func (r *Repository) LinkFederatedIdentity(ctx context.Context, id, federatedID, name, avatarURL string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts
		SET federated_id = ?, is_verified = ?, status = ?, `+clearSecret+`,
			name = COALESCE(name, ?), avatar_url = COALESCE(avatar_url, ?), updated_at = ?
		WHERE id = ? AND federated_id IS NULL`),
		federatedID, true, models.StatusActive,
		models.StringPtr(name), models.StringPtr(avatarURL), now.UTC(),
		id)
	return exactlyOne(res, err)
}

// PurgeExpiredSecrets clears every one-time secret that expired before now.
// Returns the number of accounts touched.
func (r *Repository) PurgeExpiredSecrets(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE accounts SET `+clearSecret+`
		WHERE secret_expires_at IS NOT NULL AND secret_expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
