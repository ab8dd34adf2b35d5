package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDenylist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	d := NewRedisDenylist(client, "")
	revoked, err := d.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(10*time.Minute)))
	revoked, err = d.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("classroom:revoked:jti-1"))

	// the key disappears once the token would have expired anyway
	mr.FastForward(11 * time.Minute)
	revoked, err = d.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// already expired tokens are not stored
	require.NoError(t, d.Revoke(ctx, "jti-2", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists("classroom:revoked:jti-2"))
}

func TestRedisDenylistUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisDenylist(client, "x:").Revoked(context.Background(), "jti")
	assert.Error(t, err)
}

func TestMemoryDenylist(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	d := NewMemoryDenylist()
	d.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, d.Revoke(ctx, "a", now.Add(time.Minute)))
	revoked, err := d.Revoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = d.Revoked(ctx, "b")
	assert.False(t, revoked)

	now = now.Add(time.Minute)
	revoked, _ = d.Revoked(ctx, "a")
	assert.False(t, revoked)
}
