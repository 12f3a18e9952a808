// Package ratelimit provides a deterministic token bucket used to cap the
// inbound message rate of a signalling connection.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

const nanoTokensPerToken = int64(time.Second)

const maxInt64 = int64(^uint64(0) >> 1)

// TokenBucket refills at an integer rate (tokens/sec) using the provided
// Clock. Fixed-point "nano-tokens" (1 token = 1e9 nano-tokens) avoid float
// rounding, so a rate of X tokens/sec adds X nano-tokens per elapsed
// nanosecond.
type TokenBucket struct {
	mu sync.Mutex

	clock Clock

	capacity int64 // tokens
	fillRate int64 // tokens/sec

	available int64 // nano-tokens
	last      time.Time
}

// NewTokenBucket returns a full bucket. A nil clock uses the real time.
func NewTokenBucket(clock Clock, capacity, fillRate int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if fillRate < 0 {
		fillRate = 0
	}
	return &TokenBucket{
		clock:     clock,
		capacity:  capacity,
		fillRate:  fillRate,
		available: tokensToNano(capacity),
		last:      clock.Now(),
	}
}

// Allow consumes one token if available.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.available < nanoTokensPerToken {
		return false
	}
	b.available -= nanoTokensPerToken
	return true
}

func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Time went backwards; don't refill, just move the reference point.
		b.last = now
		return
	}

	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.last = now

	if b.fillRate <= 0 || b.capacity <= 0 {
		return
	}

	capacityNano := tokensToNano(b.capacity)
	if b.available >= capacityNano {
		b.available = capacityNano
		return
	}

	// fillRate tokens/sec equals fillRate nano-tokens per nanosecond. Clamp
	// to capacity before multiplying to avoid overflow on long idle gaps.
	need := capacityNano - b.available
	elapsedNanos := elapsed.Nanoseconds()
	maxElapsedToFill := need / b.fillRate
	if maxElapsedToFill <= 0 || elapsedNanos >= maxElapsedToFill {
		b.available = capacityNano
		return
	}

	b.available += elapsedNanos * b.fillRate
	if b.available > capacityNano {
		b.available = capacityNano
	}
}

func tokensToNano(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	if tokens > maxInt64/nanoTokensPerToken {
		return maxInt64
	}
	return tokens * nanoTokensPerToken
}
