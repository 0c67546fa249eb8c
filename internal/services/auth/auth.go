// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth drives the account lifecycle: signup, verification,
// invitations, password reset and sign-in.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/email"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/otp"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/password"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/token"
	"github.com/google/uuid"
)

var (
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrNameRequired       = errors.New("name is required")
	ErrWeakPassword       = password.ErrWeak
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("please verify your email before signing in")
	ErrInvalidCode        = errors.New("invalid or expired verification code")
	ErrInvalidSecret      = errors.New("invalid or expired link")
	ErrAccountNotFound    = errors.New("no account found")
	ErrAlreadyVerified    = errors.New("account is already verified")
	ErrResendThrottled    = errors.New("please wait before requesting another code")
	ErrNotAdmin           = errors.New("admin privileges required")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSelfModification   = errors.New("you cannot change or delete your own account")
	ErrSessionExpired     = errors.New("session expired, please sign in again")
)

// codeAttempts bounds the redraws when a fresh verification code is already live elsewhere.
const codeAttempts = 5

type Service struct {
	repo      *repository.Repository
	hasher    *password.Hasher
	validator *password.Validator
	tokens    *token.Service
	codes     *otp.Generator
	notifier  email.Notifier
	cfg       *config.AuthConfig
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo *repository.Repository, tokens *token.Service, notifier email.Notifier, cfg *config.AuthConfig, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		hasher:    password.NewHasher(cfg.BcryptCost),
		validator: password.NewValidator(cfg.MinPasswordLength),
		tokens:    tokens,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.codes = otp.NewGenerator(s.now)
	return s
}

// Session is the result of a successful sign-in or refresh. Refresh is the
// zero value when no refresh token was issued.
type Session struct {
	Account *models.Account
	Access  token.Issued
	Refresh token.Issued
}

// SignUpParams holds the parameters for self-service registration.
type SignUpParams struct {
	Name     string
	Email    string
	Password string
}

// SignUp creates an unverified account and mails a verification code.
func (s *Service) SignUp(ctx context.Context, params SignUpParams) (*models.Account, error) {
	addr, err := parseEmail(params.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := s.validator.Validate(params.Password); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, addr); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	code, err := s.issueVerificationCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	purpose := models.PurposeVerify
	account := &models.Account{
		ID:              newID(),
		Email:           addr,
		PasswordHash:    &passwordHash,
		Role:            models.RoleUser,
		Status:          models.StatusPendingVerification,
		IsVerified:      false,
		Name:            &name,
		SecretPurpose:   &purpose,
		SecretHash:      &code.Hash,
		SecretExpiresAt: &code.ExpiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("signup_success", "account_id", account.ID)

	s.notify(ctx, "verification", account.ID, func() error {
		return s.notifier.SendVerificationCode(ctx, addr, name, code.Plaintext)
	})

	return account, nil
}

// VerifyEmail consumes a verification code. When email is given the lookup is
// restricted to that account; otherwise a code shared by several accounts is
// rejected.
func (s *Service) VerifyEmail(ctx context.Context, code, emailAddr string) (*models.Account, error) {
	code = otp.Normalize(code)
	if len(code) != otp.CodeDigits {
		return nil, ErrInvalidCode
	}
	hash := otp.Hash(code)
	now := s.now().UTC()

	var account *models.Account
	var err error
	if strings.TrimSpace(emailAddr) != "" {
		account, err = s.repo.FindBySecretForEmail(ctx, models.PurposeVerify, hash, emailAddr, now)
	} else {
		account, err = s.repo.FindBySecret(ctx, models.PurposeVerify, hash, now)
	}
	if err != nil {
		if errors.Is(err, repository.ErrAmbiguous) {
			slog.Warn("verify_failed", "reason", "ambiguous_code")
			return nil, ErrInvalidCode
		}
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("verify_failed", "reason", "unknown_or_expired_code")
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up verification code: %w", err)
	}

	if err := s.repo.ConsumeVerification(ctx, account.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			slog.Warn("verify_failed", "account_id", account.ID, "reason", "already_consumed")
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to verify account: %w", err)
	}

	slog.Info("email_verified", "account_id", account.ID)
	return s.repo.GetAccountByID(ctx, account.ID)
}

// ResendParams identifies the account for ResendVerification; AccountID wins
// when both are set.
type ResendParams struct {
	Email     string
	AccountID string
}

// ResendVerification replaces the verification code of a pending account,
// at most once per cooldown period.
func (s *Service) ResendVerification(ctx context.Context, params ResendParams) error {
	account, err := s.lookupForResend(ctx, params)
	if err != nil {
		return err
	}

	if account.IsVerified {
		return ErrAlreadyVerified
	}
	if account.Status != models.StatusPendingVerification {
		return ErrAccountNotFound
	}

	now := s.now().UTC()
	if account.LastCodeResendAt != nil && now.Sub(*account.LastCodeResendAt) < s.cfg.ResendCooldown {
		slog.Warn("resend_throttled", "account_id", account.ID)
		return ErrResendThrottled
	}

	code, err := s.issueVerificationCode(ctx)
	if err != nil {
		return err
	}

	err = s.repo.RotateVerificationCode(ctx, account.ID, code.Hash, code.ExpiresAt, now, now.Add(-s.cfg.ResendCooldown))
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			// lost a race against a concurrent resend or verification
			current, getErr := s.repo.GetAccountByID(ctx, account.ID)
			if getErr == nil && current.IsVerified {
				return ErrAlreadyVerified
			}
			return ErrResendThrottled
		}
		return fmt.Errorf("failed to rotate verification code: %w", err)
	}

	slog.Info("verification_resent", "account_id", account.ID)

	name := ""
	if account.Name != nil {
		name = *account.Name
	}
	s.notify(ctx, "verification", account.ID, func() error {
		return s.notifier.SendVerificationCode(ctx, account.Email, name, code.Plaintext)
	})
	return nil
}

func (s *Service) lookupForResend(ctx context.Context, params ResendParams) (*models.Account, error) {
	var account *models.Account
	var err error
	switch {
	case params.AccountID != "":
		account, err = s.repo.GetAccountByID(ctx, params.AccountID)
	case strings.TrimSpace(params.Email) != "":
		account, err = s.repo.GetAccountByEmail(ctx, params.Email)
	default:
		return nil, ErrAccountNotFound
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// SignIn authenticates with email and password and issues an access and a
// refresh token. Unknown email and wrong password fail identically.
func (s *Service) SignIn(ctx context.Context, emailAddr, plaintext string) (*Session, error) {
	account, err := s.repo.GetAccountByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.VerifyDummy(plaintext)
			slog.Warn("signin_failed", "reason", "account_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if !account.HasPassword() {
		s.hasher.VerifyDummy(plaintext)
		slog.Warn("signin_failed", "account_id", account.ID, "reason", "no_password")
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(plaintext, *account.PasswordHash) {
		slog.Warn("signin_failed", "account_id", account.ID, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !account.IsVerified {
		slog.Warn("signin_failed", "account_id", account.ID, "reason", "not_verified")
		return nil, ErrNotVerified
	}

	access, err := s.tokens.IssueAccess(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastActive(ctx, account.ID, now); err != nil {
		slog.Error("failed to record last activity", "account_id", account.ID, "error", err)
	} else {
		account.LastActiveAt = &now
	}

	slog.Info("signin_success", "account_id", account.ID)
	return &Session{Account: account, Access: access, Refresh: refresh}, nil
}

// Authenticate resolves a valid access token to its still-existing account.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.Account, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrSessionExpired
	}
	return s.loadSessionAccount(ctx, claims.Subject)
}

// Refresh issues a new access token from a valid refresh token. The role is
// read from the store, not from the refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrSessionExpired
	}

	account, err := s.loadSessionAccount(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccess(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}

	slog.Debug("access_token_refreshed", "account_id", account.ID)
	return &Session{Account: account, Access: access}, nil
}

func (s *Service) loadSessionAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if !account.IsVerified {
		return nil, ErrSessionExpired
	}
	return account, nil
}

// issueVerificationCode draws a code that is not live for any other account.
func (s *Service) issueVerificationCode(ctx context.Context) (otp.Issued, error) {
	for range codeAttempts {
		code, err := s.codes.Code(s.cfg.VerificationTTL)
		if err != nil {
			return otp.Issued{}, err
		}
		inUse, err := s.repo.SecretInUse(ctx, models.PurposeVerify, code.Hash, s.now().UTC())
		if err != nil {
			return otp.Issued{}, fmt.Errorf("failed to check verification code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return otp.Issued{}, fmt.Errorf("failed to draw an unused verification code")
}

func (s *Service) ensureEmailFree(ctx context.Context, addr string) error {
	_, err := s.repo.GetAccountByEmail(ctx, addr)
	if err == nil {
		return ErrEmailTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check existing account: %w", err)
	}
	return nil
}

// notify runs send and only logs a failure; the stored transition stands.
func (s *Service) notify(ctx context.Context, kind, accountID string, send func() error) {
	if err := send(); err != nil {
		slog.WarnContext(ctx, "notify_failed", "kind", kind, "account_id", accountID, "error", err)
	}
}

// parseEmail normalizes addr and rejects anything that is not a bare address.
func parseEmail(addr string) (string, error) {
	normalized := models.NormalizeEmail(addr)
	parsed, err := mail.ParseAddress(normalized)
	if err != nil || parsed.Address != normalized {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

func newID() string {
	return uuid.NewString()
}
