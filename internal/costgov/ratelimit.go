package costgov

import (
	"sync"
	"time"
)

// UserLimiter is the process-local fast path for per-user hourly throttling,
// separate from the durable ledger. State lives in this process only: it does
// not survive restarts and is wrong under horizontal scaling, where it must
// be replaced by a shared counter store.
type UserLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	window time.Duration
	now    func() time.Time // injectable clock for testing
}

// NewUserLimiter creates a limiter with a sliding window (one hour for the
// governor's fast path).
func NewUserLimiter(window time.Duration) *UserLimiter {
	return &UserLimiter{
		events: make(map[string][]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Allow reports whether the user is under maxPerWindow events in the sliding
// window, consuming one slot when allowed.
func (l *UserLimiter) Allow(userID string, maxPerWindow int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.trim(userID, now)
	if len(kept) >= maxPerWindow {
		return false
	}

	l.events[userID] = append(kept, now)
	return true
}

// count returns the user's event count inside the window.
func (l *UserLimiter) count(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trim(userID, l.now()))
}

// Prune drops users with no events inside the window. Run periodically so the
// map does not grow with every user ever seen.
func (l *UserLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for userID := range l.events {
		if len(l.trim(userID, now)) == 0 {
			delete(l.events, userID)
		}
	}
}

// trim drops events older than the window. Must be called with l.mu held.
func (l *UserLimiter) trim(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	events := l.events[userID]

	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		events = events[i:]
		l.events[userID] = events
	}
	return events
}
