// Package ratelimit throttles invitation sends with per-key token buckets.
// Keys are team ids for the service check and client addresses for the
// HTTP middleware.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter allows rate events per window for each key, refilling
// continuously.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time
}

// New creates a Limiter. A non-positive rate disables limiting.
func New(rate int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
	}
}

// Quota is the state of one key's bucket.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Must be called with l.mu held.
func (l *Limiter) lookup(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.rate), lastRefill: l.now()}
		l.buckets[key] = b
	}
	l.refill(b)
	return b
}

// Must be called with l.mu held.
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.tokens+elapsed*l.perSecond(), float64(l.rate))
	b.lastRefill = now
}

func (l *Limiter) perSecond() float64 {
	return float64(l.rate) / l.window.Seconds()
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	if l.rate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.lookup(key)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Status reports key's quota without consuming a token. ResetAt is when the
// bucket will be full again.
func (l *Limiter) Status(key string) Quota {
	if l.rate <= 0 {
		return Quota{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.lookup(key)
	q := Quota{Limit: l.rate, Remaining: max(int(b.tokens), 0), ResetAt: l.now()}
	if deficit := float64(l.rate) - b.tokens; deficit > 0 {
		q.ResetAt = q.ResetAt.Add(time.Duration(deficit / l.perSecond() * float64(time.Second)))
	}
	return q
}

// Sweep drops buckets that have refilled completely, bounding memory when
// keys are client addresses. It returns how many were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, b := range l.buckets {
		l.refill(b)
		if b.tokens >= float64(l.rate) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
