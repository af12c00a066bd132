// Package ratelimit implements the per-worker token bucket. A Limiter is
// owned by exactly one event-loop worker and is never touched by another
// goroutine except through UpdateRate — its token math runs lock-free on
// the owning thread, matching the worker's single-threaded admission loop.
package ratelimit

import (
	"math"
	"sync/atomic"
	"time"
)

// unlimitedBurst is the sentinel used when neither a target rate nor a
// concurrency cap is known, so no sane finite burst can be derived.
const unlimitedBurst = math.MaxInt32

// rateConfig is swapped atomically by UpdateRate; refill() reads the
// current snapshot once per call so a concurrent config update never
// tears a read.
type rateConfig struct {
	rate  float64 // tokens per second; <= 0 means unlimited (no pacing)
	burst float64 // bucket capacity
}

// Limiter is a token-bucket rate limiter with non-blocking acquire. It is
// not internally synchronized beyond the atomic config pointer: TryAcquire
// must only ever be called from the worker thread that owns the limiter.
type Limiter struct {
	cfg atomic.Pointer[rateConfig]

	tokens     float64
	lastRefill time.Time
}

// New creates a limiter for a steady rate in requests/second. If rate <= 0
// the limiter is unlimited and TryAcquire always succeeds. burst is the
// bucket capacity; pass 0 to let New derive one (see DeriveBurst).
func New(rate float64, burst float64) *Limiter {
	l := &Limiter{lastRefill: time.Now()}
	if burst <= 0 {
		burst = DeriveBurst(rate, 0)
	}
	l.cfg.Store(&rateConfig{rate: rate, burst: burst})
	if rate > 0 {
		l.tokens = burst
	}
	return l
}

// DeriveBurst resolves the Open Question of unlimited-rate burst sizing:
// when a concurrency cap is known, burst is twice that cap (bounds memory
// and goroutine churn while still letting a worker fill its concurrency
// window in one admission pass); otherwise burst defaults to twice the
// target rate, clamped to a sane range.
func DeriveBurst(rate float64, concurrency int) float64 {
	if concurrency > 0 {
		return float64(2 * concurrency)
	}
	if rate > 0 {
		b := 2 * rate
		if b < 1 {
			b = 1
		}
		if b > 10000 {
			b = 10000
		}
		return b
	}
	return unlimitedBurst
}

// TryAcquire attempts to take one token without blocking. Call only from
// the owning worker thread.
func (l *Limiter) TryAcquire() bool {
	cfg := l.cfg.Load()
	if cfg.rate <= 0 {
		return true
	}
	l.refill(cfg)
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// AvailableTokens reports the current bucket level, refilling first. Used
// by diagnostics; like TryAcquire, only safe from the owning thread.
func (l *Limiter) AvailableTokens() float64 {
	cfg := l.cfg.Load()
	if cfg.rate <= 0 {
		return unlimitedBurst
	}
	l.refill(cfg)
	return l.tokens
}

func (l *Limiter) refill(cfg *rateConfig) {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now

	l.tokens += elapsed * cfg.rate
	if l.tokens > cfg.burst {
		l.tokens = cfg.burst
	}
}

// UpdateRate changes the steady rate and, if burst <= 0, re-derives it from
// the new rate. Safe to call from any goroutine (e.g. a ramp-up strategy
// driver running on a different thread than the worker); takes effect on
// the worker's next refill.
func (l *Limiter) UpdateRate(rate float64, burst float64) {
	if burst <= 0 {
		burst = DeriveBurst(rate, 0)
	}
	l.cfg.Store(&rateConfig{rate: rate, burst: burst})
}

// Rate reports the currently configured steady rate.
func (l *Limiter) Rate() float64 {
	return l.cfg.Load().rate
}

// Enabled reports whether the limiter is currently pacing (false means
// unlimited — every TryAcquire succeeds).
func (l *Limiter) Enabled() bool {
	return l.cfg.Load().rate > 0
}
