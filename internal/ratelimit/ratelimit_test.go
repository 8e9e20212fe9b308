package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinBudget(t *testing.T) {
	lim := New(5, time.Minute)

	for i := 0; i < 5; i++ {
		ok, _ := lim.Allow("1.2.3.4")
		require.True(t, ok, "request %d should pass", i)
	}

	ok, retryAfter := lim.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestKeysAreIndependent(t *testing.T) {
	lim := New(1, time.Minute)

	ok, _ := lim.Allow("a")
	require.True(t, ok)
	ok, _ = lim.Allow("a")
	require.False(t, ok)

	ok, _ = lim.Allow("b")
	assert.True(t, ok)
}

func TestPruneDropsIdleClients(t *testing.T) {
	lim := New(10, time.Minute)
	base := time.Now()

	lim.now = func() time.Time { return base.Add(-2 * time.Minute) }
	lim.Allow("stale")

	lim.now = func() time.Time { return base }
	lim.Allow("fresh")

	require.Equal(t, 2, lim.Len())
	assert.Equal(t, 1, lim.Prune())
	assert.Equal(t, 1, lim.Len())
}
