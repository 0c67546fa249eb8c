// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package federated_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/config"
	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/federated"
	"codeberg.org/oliverandrich/assistant-hub/internal/services/token"
	"codeberg.org/oliverandrich/assistant-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T) (*federated.Bridge, *repository.Repository, *token.Service) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	tokens, err := token.NewService(&config.TokenConfig{
		Secret:     "test-secret",
		Issuer:     "assistant-hub-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return federated.NewBridge(repo, tokens), repo, tokens
}

func identity(externalID, email string) *federated.Identity {
	return &federated.Identity{
		ExternalID:    externalID,
		Email:         email,
		DisplayName:   "Grace Hopper",
		AvatarURL:     "https://example.com/grace.png",
		EmailVerified: true,
	}
}

func TestSignIn_CreatesAccount(t *testing.T) {
	bridge, repo, tokens := newBridge(t)

	result, err := bridge.SignIn(context.Background(), identity("g-1", "Grace@Example.com"))

	require.NoError(t, err)
	assert.True(t, result.Created)
	account := result.Account
	assert.Equal(t, "grace@example.com", account.Email)
	assert.Equal(t, models.RoleUser, account.Role)
	assert.True(t, account.IsVerified)
	assert.Equal(t, models.StatusActive, account.Status)
	assert.False(t, account.HasPassword())
	assert.Equal(t, "Grace Hopper", *account.Name)

	claims, err := tokens.VerifyAccess(result.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.Subject)

	stored, err := repo.GetAccountByFederatedID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.ID)
}

func TestSignIn_CreatesAccountWithoutDisplayName(t *testing.T) {
	bridge, _, _ := newBridge(t)
	id := identity("g-1", "Grace@Example.com")
	id.DisplayName = "  "

	result, err := bridge.SignIn(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, result.Account.IsVerified)
	require.NotNil(t, result.Account.Name)
	assert.Equal(t, "grace@example.com", *result.Account.Name)
}

func TestSignIn_LinksUnverifiedLocalAccount(t *testing.T) {
	bridge, repo, _ := newBridge(t)
	ctx := context.Background()
	local := testutil.NewTestAccount(t, repo, "grace@example.com", testutil.Unverified())

	result, err := bridge.SignIn(ctx, identity("g-1", "grace@example.com"))

	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, local.ID, result.Account.ID)
	assert.True(t, result.Account.IsVerified)
	assert.Equal(t, models.StatusActive, result.Account.Status)
	require.NotNil(t, result.Account.PasswordHash)
	assert.Equal(t, *local.PasswordHash, *result.Account.PasswordHash)
	assert.Equal(t, "Test User", *result.Account.Name)
	assert.Equal(t, "https://example.com/grace.png", *result.Account.AvatarURL)
}

func TestSignIn_KeepsRole(t *testing.T) {
	bridge, repo, tokens := newBridge(t)
	local := testutil.NewTestAccount(t, repo, "admin@example.com", testutil.AsAdmin())

	result, err := bridge.SignIn(context.Background(), identity("g-1", "admin@example.com"))

	require.NoError(t, err)
	assert.Equal(t, local.ID, result.Account.ID)
	assert.Equal(t, models.RoleAdmin, result.Account.Role)
	claims, err := tokens.VerifyAccess(result.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
}

func TestSignIn_AlreadyLinked(t *testing.T) {
	bridge, _, _ := newBridge(t)
	ctx := context.Background()

	first, err := bridge.SignIn(ctx, identity("g-1", "grace@example.com"))
	require.NoError(t, err)

	// the provider may report a changed address; the external id still wins
	second, err := bridge.SignIn(ctx, identity("g-1", "hopper@example.com"))
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Account.ID, second.Account.ID)
}

func TestSignIn_ConflictingExternalID(t *testing.T) {
	bridge, _, _ := newBridge(t)
	ctx := context.Background()
	_, err := bridge.SignIn(ctx, identity("g-1", "grace@example.com"))
	require.NoError(t, err)

	_, err = bridge.SignIn(ctx, identity("g-2", "grace@example.com"))

	assert.ErrorIs(t, err, federated.ErrIdentityConflict)
}

func TestSignIn_RejectsUnverifiedEmail(t *testing.T) {
	bridge, repo, _ := newBridge(t)
	testutil.NewTestAccount(t, repo, "grace@example.com")
	id := identity("g-1", "grace@example.com")
	id.EmailVerified = false

	_, err := bridge.SignIn(context.Background(), id)

	assert.ErrorIs(t, err, federated.ErrEmailNotVerified)
	_, err = repo.GetAccountByFederatedID(context.Background(), "g-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSignIn_IncompleteIdentity(t *testing.T) {
	bridge, _, _ := newBridge(t)

	_, err := bridge.SignIn(context.Background(), identity("", "grace@example.com"))
	assert.ErrorIs(t, err, federated.ErrIncompleteIdentity)

	_, err = bridge.SignIn(context.Background(), identity("g-1", ""))
	assert.ErrorIs(t, err, federated.ErrIncompleteIdentity)

	_, err = bridge.SignIn(context.Background(), nil)
	assert.ErrorIs(t, err, federated.ErrIncompleteIdentity)
}

func TestSignIn_ClearsPendingSecret(t *testing.T) {
	bridge, repo, _ := newBridge(t)
	ctx := context.Background()
	testutil.NewTestAccount(t, repo, "grace@example.com", testutil.Unverified(),
		testutil.WithSecret(models.PurposeVerify, "hash", time.Now().Add(time.Hour)))

	result, err := bridge.SignIn(ctx, identity("g-1", "grace@example.com"))

	require.NoError(t, err)
	assert.Nil(t, result.Account.SecretHash)
	assert.Nil(t, result.Account.SecretPurpose)
}
