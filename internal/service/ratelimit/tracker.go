package ratelimit

import (
	"sync"
	"time"
)

// Tracker flags token issuances that land too close together. Advisory
// only: it never blocks, real throttling is the provider's responsibility.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

// New creates a tracker with the given advisory window.
func New(window time.Duration) *Tracker {
	return &Tracker{window: window, now: time.Now}
}

// Record marks one issuance and reports whether it fell within the window
// of the previous one.
func (t *Tracker) Record() bool {
	now := t.now()
	t.mu.Lock()
	tooSoon := !t.last.IsZero() && now.Sub(t.last) < t.window
	t.last = now
	t.mu.Unlock()
	return tooSoon
}
