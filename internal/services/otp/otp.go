// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp generates one-time codes and secrets.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// CodeDigits is the length of numeric verification codes.
	CodeDigits = 6
	// SecretBytes is the entropy of URL-safe secrets (256 bits).
	SecretBytes = 32
)

var codeSpace = big.NewInt(1_000_000)

// Issued is a freshly generated one-time value. Only Hash is stored.
type Issued struct {
	Plaintext string
	Hash      string
	ExpiresAt time.Time
}

// Generator produces codes and secrets using crypto/rand.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a generator using now for expiry computation.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{now: now}
}

// NumericCode returns a uniformly distributed 6-digit code, zero-padded.
func NumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}

// URLSafeSecret returns 32 random bytes, hex encoded.
func URLSafeSecret() (string, error) {
	bytes := make([]byte, SecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Hash computes the storage form of a code or secret.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(Normalize(value)))
	return hex.EncodeToString(sum[:])
}

// Normalize trims whitespace and lower-cases hex secrets as typed or pasted.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Code issues a numeric verification code valid for ttl.
func (g *Generator) Code(ttl time.Duration) (Issued, error) {
	code, err := NumericCode()
	if err != nil {
		return Issued{}, err
	}
	return Issued{Plaintext: code, Hash: Hash(code), ExpiresAt: g.now().UTC().Add(ttl)}, nil
}

// Secret issues a URL-safe secret valid for ttl.
func (g *Generator) Secret(ttl time.Duration) (Issued, error) {
	secret, err := URLSafeSecret()
	if err != nil {
		return Issued{}, err
	}
	return Issued{Plaintext: secret, Hash: Hash(secret), ExpiresAt: g.now().UTC().Add(ttl)}, nil
}
