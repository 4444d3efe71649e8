package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Repository = (*MemoryRepository)(nil)
var _ Repository = (*PostgresRepository)(nil)

func newMemory(t *testing.T) (*MemoryRepository, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewMemoryRepository(func() time.Time { return now }), &now
}

func seed(t *testing.T, r *MemoryRepository, identity string) *models.Account {
	t.Helper()
	a, err := r.Create(context.Background(), &models.Account{Identity: identity, CredentialHash: "h", Active: true, Name: "N"})
	require.NoError(t, err)
	return a
}

func TestMemory_CreateAndLookup(t *testing.T) {
	r, now := newMemory(t)
	a := seed(t, r, " Alice@Example.COM ")

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "alice@example.com", a.Identity)
	assert.Equal(t, *now, a.CreatedAt)
	assert.Equal(t, *now, a.LastCredentialChange)

	got, err := r.GetByIdentity(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = r.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Identity, got.Identity)

	_, err = r.GetByIdentity(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_CreateDuplicateIdentity(t *testing.T) {
	r, _ := newMemory(t)
	seed(t, r, "alice@example.com")

	_, err := r.Create(context.Background(), &models.Account{Identity: "ALICE@example.com"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	r, _ := newMemory(t)
	a := seed(t, r, "alice@example.com")

	got, err := r.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	got.CredentialHash = "tampered"

	again, err := r.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "h", again.CredentialHash)
}

func TestMemory_LockoutCounters(t *testing.T) {
	r, now := newMemory(t)
	a := seed(t, r, "alice@example.com")
	ctx := context.Background()

	lock := now.Add(30 * time.Minute)
	require.NoError(t, r.RecordLoginFailure(ctx, a.ID, 5, &lock))
	got, _ := r.GetByID(ctx, a.ID)
	assert.Equal(t, 5, got.FailureCount)
	require.NotNil(t, got.LockedUntil)
	assert.Equal(t, lock, *got.LockedUntil)

	require.NoError(t, r.RecordLoginSuccess(ctx, a.ID))
	got, _ = r.GetByID(ctx, a.ID)
	assert.Equal(t, 0, got.FailureCount)
	assert.Nil(t, got.LockedUntil)

	require.NoError(t, r.RecordLoginFailure(ctx, a.ID, 3, nil))
	require.NoError(t, r.Unlock(ctx, a.ID))
	got, _ = r.GetByID(ctx, a.ID)
	assert.Equal(t, 0, got.FailureCount)

	assert.ErrorIs(t, r.RecordLoginSuccess(ctx, "missing"), common.ErrorNotFound)
}

func TestMemory_ResetTokenLifecycle(t *testing.T) {
	r, now := newMemory(t)
	a := seed(t, r, "alice@example.com")
	ctx := context.Background()

	lock := now.Add(time.Hour)
	require.NoError(t, r.RecordLoginFailure(ctx, a.ID, 5, &lock))
	require.NoError(t, r.SetResetToken(ctx, a.ID, "first", now.Add(30*time.Minute)))
	require.NoError(t, r.SetResetToken(ctx, a.ID, "second", now.Add(30*time.Minute)))

	_, err := r.ConsumeResetToken(ctx, "first", *now, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound, "overwritten token must not match")

	changed := now.Add(time.Minute)
	got, err := r.ConsumeResetToken(ctx, "second", changed, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.CredentialHash)
	assert.Equal(t, changed, got.LastCredentialChange)
	assert.Nil(t, got.ResetToken)
	assert.Nil(t, got.ResetTokenExpiry)
	assert.Equal(t, 0, got.FailureCount)
	assert.Nil(t, got.LockedUntil)

	_, err = r.ConsumeResetToken(ctx, "second", changed, "again")
	assert.ErrorIs(t, err, common.ErrorNotFound, "token is single use")
}

func TestMemory_ResetTokenExpiryBoundary(t *testing.T) {
	r, now := newMemory(t)
	a := seed(t, r, "alice@example.com")
	ctx := context.Background()

	exp := now.Add(30 * time.Minute)
	require.NoError(t, r.SetResetToken(ctx, a.ID, "tok", exp))

	_, err := r.ConsumeResetToken(ctx, "tok", exp, "h")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	got, _ := r.GetByID(ctx, a.ID)
	assert.NotNil(t, got.ResetToken, "failed consume leaves the record untouched")
	assert.Equal(t, "h", got.CredentialHash)
}

func TestMemory_ConcurrentConsumeSucceedsOnce(t *testing.T) {
	r, now := newMemory(t)
	a := seed(t, r, "alice@example.com")
	ctx := context.Background()
	require.NoError(t, r.SetResetToken(ctx, a.ID, "tok", now.Add(time.Hour)))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ConsumeResetToken(ctx, "tok", *now, "h"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestMemory_ProfileAdministration(t *testing.T) {
	r, _ := newMemory(t)
	a := seed(t, r, "alice@example.com")
	b := seed(t, r, "bob@example.com")
	ctx := context.Background()

	title := "Lead"
	email := "Alice.Smith@example.com"
	got, err := r.UpdateProfile(ctx, a.ID, models.ProfileUpdate{Title: &title, Identity: &email})
	require.NoError(t, err)
	assert.Equal(t, "Lead", got.Title)
	assert.Equal(t, "alice.smith@example.com", got.Identity)
	assert.Equal(t, "h", got.CredentialHash)

	_, err = r.GetByIdentity(ctx, "alice@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	taken := "bob@example.com"
	_, err = r.UpdateProfile(ctx, a.ID, models.ProfileUpdate{Identity: &taken})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	require.NoError(t, r.SetActive(ctx, b.ID, false))
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, r.Delete(ctx, b.ID))
	assert.ErrorIs(t, r.Delete(ctx, b.ID), common.ErrorNotFound)
	_, err = r.GetByIdentity(ctx, "bob@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_CancelledContext(t *testing.T) {
	r, _ := newMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.GetByIdentity(ctx, "alice@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}
