// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/oliverandrich/assistant-hub/internal/models"
	"codeberg.org/oliverandrich/assistant-hub/internal/repository"
	"codeberg.org/oliverandrich/assistant-hub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	db, repo := testutil.NewTestDB(t)

	assert.NotNil(t, repo)
	assert.Same(t, db, repo.DB())
}

func TestCreateAccount_Duplicate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "ada@example.com")

	dup := &models.Account{
		ID:        "other",
		Email:     "ada@example.com",
		Role:      models.RoleUser,
		Status:    models.StatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	err := repo.CreateAccount(context.Background(), dup)

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestGetAccount(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestAccount(t, repo, "Ada@Example.com")

	byID, err := repo.GetAccountByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)
	assert.Equal(t, models.RoleUser, byID.Role)
	assert.True(t, byID.IsVerified)
	assert.True(t, byID.HasPassword())

	byEmail, err := repo.GetAccountByEmail(ctx, "  ADA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.GetAccountByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetAccountByFederatedID(ctx, "g-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListAccounts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestAccount(t, repo, "a@example.com", testutil.AsAdmin())
	testutil.NewTestAccount(t, repo, "b@example.com")

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestDeleteAndUpdateRole(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	account := testutil.NewTestAccount(t, repo, "a@example.com")

	require.NoError(t, repo.UpdateRole(ctx, account.ID, models.RoleAdmin, time.Now()))
	got, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	require.NoError(t, repo.DeleteAccount(ctx, account.ID))
	assert.ErrorIs(t, repo.DeleteAccount(ctx, account.ID), repository.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateRole(ctx, account.ID, models.RoleUser, time.Now()), repository.ErrNotFound)
}

func TestFindBySecret(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	live := testutil.NewTestAccount(t, repo, "live@example.com",
		testutil.WithSecret(models.PurposeReset, "h1", now.Add(time.Hour)))
	testutil.NewTestAccount(t, repo, "expired@example.com",
		testutil.WithSecret(models.PurposeReset, "h2", now.Add(-time.Minute)))

	got, err := repo.FindBySecret(ctx, models.PurposeReset, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	_, err = repo.FindBySecret(ctx, models.PurposeInvite, "h1", now)
	assert.ErrorIs(t, err, repository.ErrNotFound, "purpose must match")

	_, err = repo.FindBySecret(ctx, models.PurposeReset, "h2", now)
	assert.ErrorIs(t, err, repository.ErrNotFound, "expired secrets are absent")

	got, err = repo.FindBySecretForEmail(ctx, models.PurposeReset, "h1", "LIVE@example.com", now)
	require.NoError(t, err)
	assert.Equal(t, live.ID, got.ID)

	_, err = repo.FindBySecretForEmail(ctx, models.PurposeReset, "h1", "expired@example.com", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFindBySecret_Ambiguous(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)
	testutil.NewTestAccount(t, repo, "a@example.com", testutil.Unverified(),
		testutil.WithSecret(models.PurposeVerify, "123456", expires))
	testutil.NewTestAccount(t, repo, "b@example.com", testutil.Unverified(),
		testutil.WithSecret(models.PurposeVerify, "123456", expires))

	_, err := repo.FindBySecret(ctx, models.PurposeVerify, "123456", time.Now())
	assert.ErrorIs(t, err, repository.ErrAmbiguous)

	inUse, err := repo.SecretInUse(ctx, models.PurposeVerify, "123456", time.Now())
	require.NoError(t, err)
	assert.True(t, inUse)
}

func TestConsumeVerification(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	account := testutil.NewTestAccount(t, repo, "a@example.com", testutil.Unverified(),
		testutil.WithSecret(models.PurposeVerify, "h", now.Add(time.Hour)))

	assert.ErrorIs(t, repo.ConsumeVerification(ctx, account.ID, "wrong", now), repository.ErrConditionFailed)
	require.NoError(t, repo.ConsumeVerification(ctx, account.ID, "h", now))
	assert.ErrorIs(t, repo.ConsumeVerification(ctx, account.ID, "h", now), repository.ErrConditionFailed)

	got, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Nil(t, got.SecretHash)
	assert.Nil(t, got.SecretPurpose)
	assert.Nil(t, got.SecretExpiresAt)
}

func TestConsumeReset_ExactlyOnceUnderContention(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	account := testutil.NewTestAccount(t, repo, "a@example.com",
		testutil.WithSecret(models.PurposeReset, "h", now.Add(time.Hour)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.ConsumeReset(ctx, account.ID, "h", "new-hash", now) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestConsumeInvitation(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	account := testutil.NewTestAccount(t, repo, "a@example.com", testutil.AsAdmin(), testutil.WithoutPassword(),
		func(a *models.Account) {
			a.Status = models.StatusInvited
			a.IsVerified = false
			a.Name = nil
		},
		testutil.WithSecret(models.PurposeInvite, "h", now.Add(time.Hour)))

	assert.ErrorIs(t, repo.ConsumeReset(ctx, account.ID, "h", "x", now), repository.ErrConditionFailed,
		"an invitation secret is not a reset secret")
	require.NoError(t, repo.ConsumeInvitation(ctx, account.ID, "h", "A", "pw-hash", now))

	got, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "A", got.DisplayName())
	assert.True(t, got.HasPassword())
}

func TestRotateVerificationCode_Throttle(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	account := testutil.NewTestAccount(t, repo, "a@example.com", testutil.Unverified())

	require.NoError(t, repo.RotateVerificationCode(ctx, account.ID, "h1", now.Add(time.Hour), now, now.Add(-time.Minute)))

	later := now.Add(30 * time.Second)
	err := repo.RotateVerificationCode(ctx, account.ID, "h2", later.Add(time.Hour), later, later.Add(-time.Minute))
	assert.ErrorIs(t, err, repository.ErrConditionFailed)

	later = now.Add(61 * time.Second)
	require.NoError(t, repo.RotateVerificationCode(ctx, account.ID, "h3", later.Add(time.Hour), later, later.Add(-time.Minute)))

	verified := testutil.NewTestAccount(t, repo, "b@example.com")
	err = repo.RotateVerificationCode(ctx, verified.ID, "h4", now.Add(time.Hour), now, now)
	assert.ErrorIs(t, err, repository.ErrConditionFailed, "only pending accounts get codes")
}

func TestLinkFederatedIdentity(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	account := testutil.NewTestAccount(t, repo, "a@example.com", testutil.Unverified(),
		testutil.WithSecret(models.PurposeVerify, "h", now.Add(time.Hour)))

	require.NoError(t, repo.LinkFederatedIdentity(ctx, account.ID, "g-1", "Other Name", "https://img.example/a.png", now))
	assert.ErrorIs(t, repo.LinkFederatedIdentity(ctx, account.ID, "g-2", "", "", now), repository.ErrConditionFailed)

	got, err := repo.GetAccountByFederatedID(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.True(t, got.IsVerified)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, "Test User", got.DisplayName(), "existing name is kept")
	require.NotNil(t, got.AvatarURL)
	assert.True(t, got.HasPassword())
	assert.Nil(t, got.SecretHash)

	other := testutil.NewTestAccount(t, repo, "b@example.com")
	err = repo.LinkFederatedIdentity(ctx, other.ID, "g-1", "", "", now)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestPromoteToAdmin(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	account := testutil.NewTestAccount(t, repo, "a@example.com", testutil.Unverified())

	require.NoError(t, repo.PromoteToAdmin(ctx, account.ID, "pw", time.Now()))

	got, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
	assert.True(t, got.IsVerified)
	assert.ErrorIs(t, repo.PromoteToAdmin(ctx, "missing", "pw", time.Now()), repository.ErrNotFound)
}

func TestTouchLastActive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	account := testutil.NewTestAccount(t, repo, "a@example.com")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, repo.TouchLastActive(ctx, account.ID, now))

	got, err := repo.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastActiveAt)
	assert.True(t, now.Equal(*got.LastActiveAt))
}
