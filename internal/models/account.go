// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// Role grants access to role-gated routes.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole returns the role for s, or false if s names no known role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

// Status is the lifecycle state of an account.
type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusInvited             Status = "invited"
	StatusActive              Status = "active"
)

// SecretPurpose names what the pending one-time secret of an account completes.
type SecretPurpose string

const (
	PurposeVerify SecretPurpose = "verify"
	PurposeInvite SecretPurpose = "invite"
	PurposeReset  SecretPurpose = "reset"
)

// Account is a principal of the platform. An account holds at most one
// pending one-time secret at a time; issuing a new one replaces the old.
type Account struct { //nolint:govet // fieldalignment: readability over optimization
	ID               string         `db:"id" json:"id"`
	Email            string         `db:"email" json:"email"`
	PasswordHash     *string        `db:"password_hash" json:"-"`
	Role             Role           `db:"role" json:"role"`
	Status           Status         `db:"status" json:"status"`
	IsVerified       bool           `db:"is_verified" json:"isVerified"`
	Name             *string        `db:"name" json:"name,omitempty"`
	FederatedID      *string        `db:"federated_id" json:"-"`
	AvatarURL        *string        `db:"avatar_url" json:"avatarUrl,omitempty"`
	SecretPurpose    *SecretPurpose `db:"secret_purpose" json:"-"`
	SecretHash       *string        `db:"secret_hash" json:"-"`
	SecretExpiresAt  *time.Time     `db:"secret_expires_at" json:"-"`
	LastCodeResendAt *time.Time     `db:"last_code_resend_at" json:"-"`
	LastActiveAt     *time.Time     `db:"last_active_at" json:"lastActiveAt,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the account carries the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// HasPassword reports whether password sign-in is possible at all.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// IsFederated reports whether an external identity is linked.
func (a *Account) IsFederated() bool {
	return a.FederatedID != nil && *a.FederatedID != ""
}

// DisplayName returns the name, falling back to the email address.
func (a *Account) DisplayName() string {
	if a.Name != nil && *a.Name != "" {
		return *a.Name
	}
	return a.Email
}

// PendingSecret reports whether a secret for purpose is set and unexpired at now.
func (a *Account) PendingSecret(purpose SecretPurpose, now time.Time) bool {
	if a.SecretPurpose == nil || *a.SecretPurpose != purpose {
		return false
	}
	if a.SecretHash == nil || a.SecretExpiresAt == nil {
		return false
	}
	return a.SecretExpiresAt.After(now)
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
