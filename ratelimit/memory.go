package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/ineyio/llmgateway"
)

// Limiter is an in-memory token bucket rate limiter keyed by principal.
// Buckets refill lazily on each check; there is no background timer.
type Limiter struct {
	capacity float64
	window   time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	evicted    bool
}

var _ llmgateway.RateLimiter = (*Limiter)(nil)

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter that admits capacity units per window per principal.
// Non-positive arguments fall back to 60 per minute.
func New(capacity int, window time.Duration, opts ...Option) *Limiter {
	if capacity <= 0 {
		capacity = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	l := &Limiter{
		capacity: float64(capacity),
		window:   window,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes cost tokens from the principal's bucket if available.
// A cost of zero or less counts as one.
func (l *Limiter) Check(principal string, cost int) (bool, llmgateway.RateInfo) {
	if cost <= 0 {
		cost = 1
	}

	for {
		b := l.bucket(principal)

		b.mu.Lock()
		if b.evicted {
			// Pruned between lookup and lock; retry with a fresh bucket.
			b.mu.Unlock()
			continue
		}

		now := l.now()
		if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
			b.tokens = math.Min(l.capacity, b.tokens+elapsed.Seconds()*l.capacity/l.window.Seconds())
		}
		b.lastRefill = now

		allowed := b.tokens >= float64(cost)
		if allowed {
			b.tokens -= float64(cost)
		}
		remaining := int(math.Floor(b.tokens))
		b.mu.Unlock()

		return allowed, llmgateway.RateInfo{
			Principal:       principal,
			Allowed:         allowed,
			TokensRemaining: remaining,
			Limit:           int(l.capacity),
			ResetIn:         l.window,
		}
	}
}

// Prune removes buckets not checked for at least idle and returns how many
// were removed.
func (l *Limiter) Prune(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		if !b.lastRefill.After(cutoff) {
			b.evicted = true
			delete(l.buckets, key)
			removed++
		}
		b.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked principals.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(principal string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[principal]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[principal]; ok {
		return b
	}
	b = &bucket{
		tokens:     l.capacity,
		lastRefill: l.now(),
	}
	l.buckets[principal] = b
	return b
}
