package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenylistRevokes(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Minute))
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = d.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryDenylistExpires(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()
	now := time.Now()
	d.now = func() time.Time { return now }

	require.NoError(t, d.Revoke(ctx, "jti", time.Minute))

	now = now.Add(2 * time.Minute)
	revoked, err := d.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.Empty(t, d.revoked)
}

func TestMemoryDenylistIgnoresNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()

	require.NoError(t, d.Revoke(ctx, "jti", 0))
	revoked, err := d.IsRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}
