// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package password_test

import (
	"errors"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/assistant-hub/internal/services/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := password.NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("secret1")

	require.NoError(t, err)
	assert.NotEmpty(t, digest)
	assert.NotEqual(t, "secret1", digest)
	assert.True(t, h.Verify("secret1", digest))
	assert.False(t, h.Verify("secret2", digest))
}

func TestHasher_SaltedDigestsDiffer(t *testing.T) {
	h := password.NewHasher(bcrypt.MinCost)

	first, err := h.Hash("secret1")
	require.NoError(t, err)
	second, err := h.Hash("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("secret1", first))
	assert.True(t, h.Verify("secret1", second))
}

func TestHasher_MalformedDigest(t *testing.T) {
	h := password.NewHasher(bcrypt.MinCost)

	assert.False(t, h.Verify("secret1", ""))
	assert.False(t, h.Verify("secret1", "not-a-bcrypt-hash"))
}

func TestHasher_CostIsApplied(t *testing.T) {
	h := password.NewHasher(bcrypt.MinCost + 1)

	digest, err := h.Hash("secret1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestHasher_InvalidCostFallsBack(t *testing.T) {
	h := password.NewHasher(99)

	digest, err := h.Hash("x")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestHasher_VerifyDummy(t *testing.T) {
	h := password.NewHasher(bcrypt.MinCost)

	assert.NotPanics(t, func() { h.VerifyDummy("anything") })
}

func TestValidator_Validate(t *testing.T) {
	v := password.NewValidator(6)

	tests := []struct {
		name     string
		password string
		code     string
	}{
		{"too short", "abc", "min_length"},
		{"empty", "", "min_length"},
		{"exactly minimum", "secret", ""},
		{"long enough", "secret1", ""},
		{"multibyte counted as characters", "äöüäöü", ""},
		{"above bcrypt limit", strings.Repeat("a", 73), "max_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.password)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var verr *password.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.code, verr.Code)
			assert.ErrorIs(t, err, password.ErrWeak)
		})
	}
}

func TestNewValidator_Default(t *testing.T) {
	v := password.NewValidator(0)

	assert.Equal(t, 6, v.MinLength)
}
