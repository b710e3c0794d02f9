// Package ratelimit provides token bucket rate limiting on top of
// golang.org/x/time/rate. The status server uses it to cap requests per
// client address.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket rate limiter.
type Limiter struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

// New creates a new rate limiter.
// r is tokens per second, capacity is the maximum burst size. The bucket
// starts full.
func New(r float64, capacity int) *Limiter {
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(r), capacity),
		lastSeen: time.Now(),
	}
}

// Allow returns true if a request is allowed, consuming one token.
func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

// AllowN returns true if n requests are allowed, consuming n tokens.
func (l *Limiter) AllowN(n int) bool {
	now := time.Now()
	l.mu.Lock()
	l.lastSeen = now
	l.mu.Unlock()
	return l.limiter.AllowN(now, n)
}

// Tokens returns the current number of available tokens.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// idleSince reports whether the limiter has been unused since before
// cutoff and its bucket has refilled.
func (l *Limiter) idleSince(cutoff time.Time) bool {
	l.mu.Lock()
	last := l.lastSeen
	l.mu.Unlock()
	return last.Before(cutoff) && l.limiter.Tokens() >= float64(l.limiter.Burst())
}

// KeyedLimiter provides per-key rate limiting.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	rate     float64
	capacity int
	cleanup  time.Duration // how long to keep idle limiters
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKeyed creates a per-key rate limiter. Limiters unused for longer than
// cleanup are dropped by a background goroutine until Close is called.
func NewKeyed(r float64, capacity int, cleanup time.Duration) *KeyedLimiter {
	kl := &KeyedLimiter{
		limiters: make(map[string]*Limiter),
		rate:     r,
		capacity: capacity,
		cleanup:  cleanup,
		stopCh:   make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (kl *KeyedLimiter) Close() {
	kl.stopOnce.Do(func() {
		close(kl.stopCh)
	})
}

// Allow checks if a request for the given key is allowed.
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	limiter, ok := kl.limiters[key]
	if !ok {
		limiter = New(kl.rate, kl.capacity)
		kl.limiters[key] = limiter
	}
	kl.mu.Unlock()

	return limiter.Allow()
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-kl.stopCh:
			return
		case <-ticker.C:
			kl.prune(time.Now().Add(-kl.cleanup))
		}
	}
}

// prune removes limiters idle since before cutoff.
func (kl *KeyedLimiter) prune(cutoff time.Time) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	removed := 0
	for key, limiter := range kl.limiters {
		if limiter.idleSince(cutoff) {
			delete(kl.limiters, key)
			removed++
		}
	}
	return removed
}
