// Package ratelimit gates process-directed actions with a token
// bucket, so that a host stuck at the Hard threshold cannot have the
// supervisor signal it into oblivion.
package ratelimit

import "time"

// Limiter is a token bucket refilled at a fixed rate and accrued at
// 1-second granularity, independent of how often TryConsume is called.
type Limiter struct {
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// New builds a Limiter with the given capacity (max_actions_per_min).
// Refill accrues at capacity/60 tokens per second. The bucket starts
// full.
func New(maxActionsPerMin int) *Limiter {
	return newWithClock(maxActionsPerMin, time.Now)
}

// newWithClock is the injectable-clock constructor used by tests that
// need deterministic refill timing.
func newWithClock(maxActionsPerMin int, now func() time.Time) *Limiter {
	cap := float64(maxActionsPerMin)
	return &Limiter{
		capacity:   cap,
		refillRate: cap / 60.0,
		tokens:     cap,
		lastRefill: now(),
		now:        now,
	}
}

// TryConsume reports whether one action token is available and, if
// so, consumes it. Refill is computed lazily at call time, quantized
// to whole elapsed seconds so fractional calls within the same second
// don't under-refill.
func (l *Limiter) TryConsume() bool {
	l.refill()
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	seconds := int(elapsed / time.Second)
	if seconds <= 0 {
		return
	}
	l.tokens += float64(seconds) * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = l.lastRefill.Add(time.Duration(seconds) * time.Second)
}
