package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // tokens added per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket. capacity is the burst size and
// refillRate the sustained requests per second.
func NewTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Allow takes one token at time now, reporting whether one was available
func (tb *TokenBucket) Allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	limit   Limit
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewRateLimiter creates a limiter. Buckets idle for longer than ttl are
// dropped by Sweep; a zero ttl keeps them forever.
func NewRateLimiter(limit Limit, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		ttl:     ttl,
		now:     time.Now,
		buckets: make(map[string]*TokenBucket),
	}
}

// Allow takes a token from the bucket of key
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = NewTokenBucket(rl.limit.Capacity, rl.limit.RefillRate, now)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.Allow(now)
}

// Reset forgets the bucket of key, restoring its full burst
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, key)
}

// Sweep removes buckets idle for longer than the ttl and returns how many
func (rl *RateLimiter) Sweep() int {
	if rl.ttl <= 0 {
		return 0
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) > rl.ttl {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
