package gesture

import "time"

// Throttle enforces a minimum spacing between frames handed to the
// classifier. Frames arriving too early are dropped, never queued.
type Throttle struct {
	interval time.Duration
	last     time.Time
	started  bool
}

// NewThrottle returns a throttle that admits at most one call per interval.
// A non-positive interval admits every time-ordered call.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Interval returns the configured spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Allow reports whether a frame at now should be processed and, if so,
// records it. Timestamps earlier than the last admitted frame are rejected.
func (t *Throttle) Allow(now time.Time) bool {
	if !t.started {
		t.started = true
		t.last = now
		return true
	}
	if now.Before(t.last) {
		return false
	}
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
