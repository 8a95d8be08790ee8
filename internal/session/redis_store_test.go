package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	store, _ := setupTestRedis(t)
	assert.NoError(t, store.Ping(context.Background()))

	_, err := NewRedisStore("not-a-url")
	assert.Error(t, err)
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRefreshSession(ctx, "hash-1", "acct-1", "sun@example.com", time.Now().Add(time.Hour)))

	data, err := store.LookupRefreshSession(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", data.AccountID)
	assert.Equal(t, "sun@example.com", data.Email)
	assert.False(t, data.CreatedAt.IsZero())
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRefreshSession(ctx, "hash-1", "acct-1", "sun@example.com", time.Now().Add(time.Second)))
	s.FastForward(2 * time.Second)

	_, err := store.LookupRefreshSession(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSaveRejectsExpiredSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	err := store.SaveRefreshSession(context.Background(), "hash-1", "acct-1", "", time.Now().Add(-time.Second))
	assert.Error(t, err)
}

func TestRevokeRefreshSession(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRefreshSession(ctx, "hash-1", "acct-1", "", time.Now().Add(time.Hour)))
	require.NoError(t, store.RevokeRefreshSession(ctx, "hash-1"))
	_, err := store.LookupRefreshSession(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	assert.NoError(t, store.RevokeRefreshSession(ctx, "never-existed"))
}

func TestRevokeAccountSessions(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	require.NoError(t, store.SaveRefreshSession(ctx, "a", "acct-1", "", expires))
	require.NoError(t, store.SaveRefreshSession(ctx, "b", "acct-1", "", expires))
	require.NoError(t, store.SaveRefreshSession(ctx, "c", "acct-2", "", expires))

	require.NoError(t, store.RevokeAccountSessions(ctx, "acct-1"))

	for _, hash := range []string{"a", "b"} {
		_, err := store.LookupRefreshSession(ctx, hash)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	}
	_, err := store.LookupRefreshSession(ctx, "c")
	assert.NoError(t, err)
	assert.False(t, s.Exists(accountsPrefix+"acct-1"))
}

func TestResetTokenIsSingleUse(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.SaveResetToken(ctx, "reset-hash", "acct-1", time.Hour))
	ttl := s.TTL(resetPrefix + "reset-hash")
	assert.Equal(t, time.Hour, ttl)

	accountID, err := store.ConsumeResetToken(ctx, "reset-hash")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", accountID)

	_, err = store.ConsumeResetToken(ctx, "reset-hash")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRevokedAccessTokens(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	revoked, err := store.IsAccessTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeAccessToken(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err = store.IsAccessTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	s.FastForward(2 * time.Minute)
	revoked, err = store.IsAccessTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.RevokeAccessToken(ctx, "jti-2", time.Now().Add(-time.Minute)))
	assert.False(t, s.Exists(revokedPrefix+"jti-2"))
}
