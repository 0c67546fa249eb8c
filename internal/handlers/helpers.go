// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
)

// MessageResponse acknowledges an operation without further data.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreatedResponse reports the id of a newly created account.
type CreatedResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// AccountResponse carries a single account.
type AccountResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	User    *models.Account `json:"user"`
}

// TokenResponse carries an access token and, after sign-in, the account.
type TokenResponse struct {
	Success   bool            `json:"success"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      *models.Account `json:"user,omitempty"`
}

// InvitationResponse describes a pending invitation.
type InvitationResponse struct {
	Success   bool        `json:"success"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// TeamResponse lists accounts.
type TeamResponse struct {
	Success bool             `json:"success"`
	Users   []models.Account `json:"users"`
}
