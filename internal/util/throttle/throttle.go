package throttle

import (
	"sync"
	"time"
)

// Throttle limits an action to at most once per interval. Safe for
// concurrent use.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// New creates a throttle with the specified interval.
func New(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether the action may run now, recording the time when it
// may. The first call is always allowed.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.last.IsZero() || now.Sub(t.last) >= t.interval {
		t.last = now
		return true
	}
	return false
}

// Reset clears the throttle, allowing the next action immediately.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.last = time.Time{}
	t.mu.Unlock()
}

// Interval returns the configured interval.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
