// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package password hashes credentials and enforces the password policy.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxBytes is the bcrypt input limit; longer inputs are rejected, not truncated.
const maxBytes = 72

// Hasher produces and checks salted bcrypt digests.
type Hasher struct {
	cost      int
	dummyHash []byte
}

// NewHasher returns a hasher with the given bcrypt cost. Out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// used for constant-time sign-in when the account does not exist
	dummy, _ := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	return &Hasher{cost: cost, dummyHash: dummy}
}

// Hash returns the bcrypt digest of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. Malformed digests never match.
func (h *Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// VerifyDummy spends the same work as Verify without a real digest.
func (h *Hasher) VerifyDummy(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plaintext))
}

// ErrWeak is wrapped by every *ValidationError.
var ErrWeak = errors.New("password does not meet requirements")

// ValidationError describes why a password was rejected.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrWeak
}

// Validator enforces length rules on new passwords.
type Validator struct {
	MinLength int
}

// NewValidator returns a validator requiring at least minLength characters.
func NewValidator(minLength int) *Validator {
	if minLength < 1 {
		minLength = 6
	}
	return &Validator{MinLength: minLength}
}

// Validate returns a *ValidationError if password is unacceptable.
func (v *Validator) Validate(password string) error {
	if len([]rune(password)) < v.MinLength {
		return &ValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("Password must be at least %d characters long.", v.MinLength),
		}
	}
	if len(password) > maxBytes {
		return &ValidationError{
			Code:    "max_length",
			Message: fmt.Sprintf("Password must be at most %d bytes long.", maxBytes),
		}
	}
	return nil
}
