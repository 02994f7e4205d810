package costgov

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUserLimiterAllow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewUserLimiter(time.Hour)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("alice", 2))
	require.True(t, l.Allow("alice", 2))
	require.False(t, l.Allow("alice", 2))

	// Other users have independent windows.
	require.True(t, l.Allow("bob", 2))
	require.Equal(t, 2, l.count("alice"))
	require.Equal(t, 1, l.count("bob"))
}

func TestUserLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewUserLimiter(time.Hour)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("alice", 1))
	require.False(t, l.Allow("alice", 1))

	// An hour later the old event has slid out of the window.
	now = now.Add(time.Hour + time.Second)
	require.True(t, l.Allow("alice", 1))
}

func TestUserLimiterPrune(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewUserLimiter(time.Hour)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("alice", 5))
	require.True(t, l.Allow("bob", 5))

	now = now.Add(2 * time.Hour)
	l.Prune()

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Empty(t, l.events)
}

func TestUserLimiterPruneReclaimsIdleUsers(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewUserLimiter(time.Hour)
	l.now = func() time.Time { return now }

	for i := range 10_000 {
		require.True(t, l.Allow(fmt.Sprintf("user-%d", i), 1))
	}

	// Expired events alone do not reclaim the map; only Prune does.
	now = now.Add(24 * time.Hour)
	l.mu.Lock()
	require.Len(t, l.events, 10_000)
	l.mu.Unlock()

	l.Prune()

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Empty(t, l.events)
}
