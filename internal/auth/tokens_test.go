package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstream/backend/internal/models"
)

type stubIssuer struct {
	calls atomic.Int64
	err   error
}

func (s *stubIssuer) Issue(userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.calls.Add(1)
	return "access-" + userID, nil
}

func newTestManager(t *testing.T) (*TokenManager, *InMemoryTokenStore, *time.Time) {
	t.Helper()
	store := NewInMemoryTokenStore()
	manager := NewTokenManager(&stubIssuer{}, store, time.Hour, 7*24*time.Hour)
	now := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }
	return manager, store, &now
}

func TestCreateTokenPair(t *testing.T) {
	manager, store, now := newTestManager(t)

	pair, err := manager.CreateTokenPair(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "access-user-1", pair.AccessToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(3600), pair.ExpiresIn)
	assert.Len(t, pair.RefreshToken, 64)

	stored, ok := store.Get(pair.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, "user-1", stored.UserID)
	assert.False(t, stored.IsRevoked)
	assert.Equal(t, now.Add(7*24*time.Hour), stored.ExpiresAt)
}

func TestCreateTokenPairRequiresUser(t *testing.T) {
	manager, _, _ := newTestManager(t)

	_, err := manager.CreateTokenPair(context.Background(), "")
	require.Error(t, err)
}

func TestCreateTokenPairPropagatesIssuerErrors(t *testing.T) {
	store := NewInMemoryTokenStore()
	manager := NewTokenManager(&stubIssuer{err: errors.New("boom")}, store, time.Hour, time.Hour)

	_, err := manager.CreateTokenPair(context.Background(), "user-1")
	require.Error(t, err)
}

func TestRefreshTokensAreSingleUse(t *testing.T) {
	manager, store, _ := newTestManager(t)
	ctx := context.Background()

	first, err := manager.CreateTokenPair(ctx, "user-1")
	require.NoError(t, err)

	second, err := manager.RefreshAccessToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "access-user-1", second.AccessToken)

	old, ok := store.Get(first.RefreshToken)
	require.True(t, ok)
	assert.True(t, old.IsRevoked)

	_, err = manager.RefreshAccessToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = manager.RefreshAccessToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsUnusableTokens(t *testing.T) {
	manager, store, now := newTestManager(t)
	ctx := context.Background()

	store.Put(models.RefreshToken{UserID: "user-1", Token: "expired", ExpiresAt: now.Add(-time.Second)})
	store.Put(models.RefreshToken{UserID: "user-1", Token: "boundary", ExpiresAt: *now})
	store.Put(models.RefreshToken{UserID: "user-1", Token: "revoked", ExpiresAt: now.Add(time.Hour), IsRevoked: true})

	for _, token := range []string{"", "unknown", "expired", "boundary", "revoked"} {
		_, err := manager.RefreshAccessToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken, "token %q", token)
	}
}

func TestConcurrentRefreshSucceedsOnce(t *testing.T) {
	manager, _, _ := newTestManager(t)
	ctx := context.Background()

	pair, err := manager.CreateTokenPair(ctx, "user-1")
	require.NoError(t, err)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int64
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if _, err := manager.RefreshAccessToken(ctx, pair.RefreshToken); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes.Load())
}

func TestRevokeRefreshToken(t *testing.T) {
	manager, store, now := newTestManager(t)
	ctx := context.Background()

	pair, err := manager.CreateTokenPair(ctx, "user-1")
	require.NoError(t, err)

	revoked, err := manager.RevokeRefreshToken(ctx, "user-1", pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = manager.RevokeRefreshToken(ctx, "user-1", pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, revoked, "already revoked")

	store.Put(models.RefreshToken{UserID: "user-1", Token: "expired", ExpiresAt: now.Add(-time.Minute)})
	revoked, err = manager.RevokeRefreshToken(ctx, "user-1", "expired")
	require.NoError(t, err)
	assert.False(t, revoked, "expired")

	revoked, err = manager.RevokeRefreshToken(ctx, "user-1", "unknown")
	require.NoError(t, err)
	assert.False(t, revoked, "unknown")
}

func TestRevokeRefreshTokenIsScopedToOwner(t *testing.T) {
	manager, store, _ := newTestManager(t)
	ctx := context.Background()

	victim, err := manager.CreateTokenPair(ctx, "user-1")
	require.NoError(t, err)

	revoked, err := manager.RevokeRefreshToken(ctx, "user-2", victim.RefreshToken)
	require.NoError(t, err)
	assert.False(t, revoked)

	stored, ok := store.Get(victim.RefreshToken)
	require.True(t, ok)
	assert.False(t, stored.IsRevoked, "another user's token stays usable")

	_, err = manager.RefreshAccessToken(ctx, victim.RefreshToken)
	require.NoError(t, err)
}

func TestRevokeAllUserTokens(t *testing.T) {
	manager, store, now := newTestManager(t)
	ctx := context.Background()

	a, err := manager.CreateTokenPair(ctx, "user-1")
	require.NoError(t, err)
	b, err := manager.CreateTokenPair(ctx, "user-1")
	require.NoError(t, err)
	other, err := manager.CreateTokenPair(ctx, "user-2")
	require.NoError(t, err)
	store.Put(models.RefreshToken{UserID: "user-1", Token: "stale", ExpiresAt: now.Add(-time.Hour)})

	require.NoError(t, manager.RevokeAllUserTokens(ctx, "user-1"))

	for _, token := range []string{a.RefreshToken, b.RefreshToken, "stale"} {
		stored, ok := store.Get(token)
		require.True(t, ok)
		assert.True(t, stored.IsRevoked, token)
	}

	_, err = manager.RefreshAccessToken(ctx, a.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = manager.RefreshAccessToken(ctx, other.RefreshToken)
	assert.NoError(t, err)

	require.NoError(t, manager.RevokeAllUserTokens(ctx, "nobody"))
}

func TestDeleteExpiredTokens(t *testing.T) {
	manager, store, now := newTestManager(t)
	ctx := context.Background()

	store.Put(models.RefreshToken{UserID: "user-1", Token: "expired", ExpiresAt: now.Add(-time.Hour)})
	store.Put(models.RefreshToken{UserID: "user-1", Token: "expired-revoked", ExpiresAt: now.Add(-time.Minute), IsRevoked: true})
	store.Put(models.RefreshToken{UserID: "user-1", Token: "live-revoked", ExpiresAt: now.Add(time.Hour), IsRevoked: true})
	live, err := manager.CreateTokenPair(ctx, "user-1")
	require.NoError(t, err)

	deleted, err := manager.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, ok := store.Get("live-revoked")
	assert.True(t, ok)
	_, ok = store.Get(live.RefreshToken)
	assert.True(t, ok)

	deleted, err = manager.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
