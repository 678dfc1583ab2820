package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpay/smartpay-api/internal/pkg/database/dbtest"
)

func TestMemoryStoreRevokesUntilExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Revoke(ctx, "jti-1", now.Add(time.Minute)))
	require.NoError(t, s.Revoke(ctx, "jti-expired", now.Add(-time.Minute)))

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.IsRevoked(ctx, "jti-expired")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation should lapse with the token")

	require.NoError(t, s.Revoke(ctx, "jti-2", now.Add(time.Minute)))
	assert.Len(t, s.entries, 1, "expired entries should be pruned")
}

func TestRedisStore(t *testing.T) {
	client := dbtest.Redis(t)
	ctx := context.Background()
	s := NewRedisStore(client)

	require.NoError(t, s.Revoke(ctx, "jti-redis", time.Now().Add(time.Minute)))

	revoked, err := s.IsRevoked(ctx, "jti-redis")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.IsRevoked(ctx, "jti-other")
	require.NoError(t, err)
	assert.False(t, revoked)

	ttl, err := client.TTL(ctx, keyPrefix+"jti-redis").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
