// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/assistant-hub/internal/auth"
	"codeberg.org/oliverandrich/assistant-hub/internal/i18n"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	authsvc "codeberg.org/oliverandrich/assistant-hub/internal/services/auth"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains the handlers of the /auth group.
type AuthHandlers struct {
	svc     *authsvc.Service
	cookies *session.Cookies
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *authsvc.Service, cookies *session.Cookies) *AuthHandlers {
	return &AuthHandlers{svc: svc, cookies: cookies}
}

// SignUpRequest is the request body for self-service registration.
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required"`
}

// SignUp registers a new account and mails the verification code.
func (h *AuthHandlers) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	account, err := h.svc.SignUp(ctx, authsvc.SignUpParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreatedResponse{
		Success: true,
		UserID:  account.ID,
		Message: i18n.T(ctx, "api_signup_success"),
	})
}

// VerifyEmailRequest carries the code from the path and an optional email.
type VerifyEmailRequest struct {
	Code  string `param:"code" json:"-" validate:"required"`
	Email string `json:"email"`
}

// VerifyEmail consumes a verification code.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	account, err := h.svc.VerifyEmail(ctx, req.Code, req.Email)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Success: true,
		Message: i18n.T(ctx, "api_email_verified"),
		User:    account,
	})
}

// ResendVerificationRequest identifies the account by email or id.
type ResendVerificationRequest struct {
	Email  string `json:"email" validate:"required_without=UserID"`
	UserID string `json:"userId"`
}

// ResendVerification mails a fresh verification code.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	var req ResendVerificationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	err := h.svc.ResendVerification(ctx, authsvc.ResendParams{Email: req.Email, AccountID: req.UserID})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: i18n.T(ctx, "api_verification_sent")})
}

// SignInRequest is the request body for password sign-in.
type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SignIn authenticates with email and password. The access token is returned
// in the body and as a cookie; the refresh token only as a cookie.
func (h *AuthHandlers) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	sess, err := h.svc.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.SetCookie(h.cookies.Access(sess.Access))
	c.SetCookie(h.cookies.Refresh(sess.Refresh))

	return c.JSON(http.StatusOK, TokenResponse{
		Success:   true,
		Token:     sess.Access.Value,
		ExpiresAt: sess.Access.ExpiresAt,
		User:      sess.Account,
	})
}

// Refresh mints a new access token from the refresh cookie.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	refreshToken := h.cookies.RefreshToken(c.Request())
	if refreshToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	sess, err := h.svc.Refresh(c.Request().Context(), refreshToken)
	if err != nil {
		return err
	}

	c.SetCookie(h.cookies.Access(sess.Access))
	return c.JSON(http.StatusOK, TokenResponse{
		Success:   true,
		Token:     sess.Access.Value,
		ExpiresAt: sess.Access.ExpiresAt,
	})
}

// Logout clears the token cookies.
func (h *AuthHandlers) Logout(c echo.Context) error {
	for _, cookie := range h.cookies.Clear() {
		c.SetCookie(cookie)
	}
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: i18n.T(c.Request().Context(), "api_logged_out")})
}

// Me returns the authenticated account.
func (h *AuthHandlers) Me(c echo.Context) error {
	account := auth.GetAccount(c.Request().Context())
	if account == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return c.JSON(http.StatusOK, AccountResponse{Success: true, User: account})
}

// ForgotPasswordRequest is the request body for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ForgotPassword mails a password reset link.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.svc.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: i18n.T(ctx, "api_reset_sent")})
}

// ResetPasswordRequest carries the secret from the path and the new password.
type ResetPasswordRequest struct {
	Token    string `param:"token" json:"-" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetPassword sets a new password using a reset secret.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.svc.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: i18n.T(ctx, "api_password_reset")})
}

// InviteUserRequest is the request body for inviting a team member.
type InviteUserRequest struct {
	Email string `json:"email" validate:"required,max=254"`
	Role  string `json:"role" validate:"omitempty,oneof=admin user"`
}

// InviteUser creates an invitation. Admin only.
func (h *AuthHandlers) InviteUser(c echo.Context) error {
	var req InviteUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	account, err := h.svc.InviteUser(ctx, auth.GetAccount(ctx), req.Email, req.Role)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, CreatedResponse{
		Success: true,
		UserID:  account.ID,
		Message: i18n.T(ctx, "api_invitation_sent"),
	})
}

// ValidateInvitation reports email and role of a pending invitation.
func (h *AuthHandlers) ValidateInvitation(c echo.Context) error {
	invitation, err := h.svc.ValidateInvitation(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, InvitationResponse{
		Success:   true,
		Email:     invitation.Email,
		Role:      invitation.Role,
		ExpiresAt: invitation.ExpiresAt,
	})
}

// AcceptInvitationRequest carries the secret from the path, name and password.
type AcceptInvitationRequest struct {
	Token    string `param:"token" json:"-" validate:"required"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
}

// AcceptInvitation completes an invitation.
func (h *AuthHandlers) AcceptInvitation(c echo.Context) error {
	var req AcceptInvitationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	account, err := h.svc.AcceptInvitation(ctx, req.Token, req.Name, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Success: true,
		Message: i18n.T(ctx, "api_invitation_accepted"),
		User:    account,
	})
}

// Teams lists all accounts. Admin only.
func (h *AuthHandlers) Teams(c echo.Context) error {
	accounts, err := h.svc.ListTeam(c.Request().Context())
	if err != nil {
		return err
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	return c.JSON(http.StatusOK, TeamResponse{Success: true, Users: accounts})
}

// DeleteUser removes an account. Admin only.
func (h *AuthHandlers) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.DeleteAccount(ctx, auth.GetAccount(ctx), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: i18n.T(ctx, "api_account_deleted")})
}

// UpdateRoleRequest is the request body for changing a role.
type UpdateRoleRequest struct {
	ID   string `param:"id" json:"-" validate:"required"`
	Role string `json:"role" validate:"required,oneof=admin user"`
}

// UpdateRole changes the role of an account. Admin only.
func (h *AuthHandlers) UpdateRole(c echo.Context) error {
	var req UpdateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	account, err := h.svc.UpdateRole(ctx, auth.GetAccount(ctx), req.ID, req.Role)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AccountResponse{
		Success: true,
		Message: i18n.T(ctx, "api_role_updated"),
		User:    account,
	})
}
