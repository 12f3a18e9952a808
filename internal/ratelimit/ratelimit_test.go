package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTokenBucket_StartsFull(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 3, 1)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("Allow #%d=false, want burst of 3", i+1)
		}
	}
	if b.Allow() {
		t.Fatalf("Allow succeeded on empty bucket")
	}
}

func TestTokenBucket_RefillsAtRate(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clk, 2, 2)

	b.Allow()
	b.Allow()
	if b.Allow() {
		t.Fatalf("Allow succeeded on empty bucket")
	}

	clk.advance(500 * time.Millisecond) // 2 tokens/sec -> one token back
	if !b.Allow() {
		t.Fatalf("Allow=false after refill interval")
	}
	if b.Allow() {
		t.Fatalf("Allow succeeded before second token refilled")
	}

	clk.advance(10 * time.Second) // clamps at capacity
	if !b.Allow() || !b.Allow() {
		t.Fatalf("bucket did not clamp to full capacity")
	}
	if b.Allow() {
		t.Fatalf("bucket exceeded capacity")
	}
}

func TestTokenBucket_TimeGoingBackwards(t *testing.T) {
	clk := &fakeClock{now: time.Unix(100, 0)}
	b := NewTokenBucket(clk, 1, 1)

	if !b.Allow() {
		t.Fatalf("Allow=false on full bucket")
	}
	clk.now = time.Unix(50, 0)
	if b.Allow() {
		t.Fatalf("Allow succeeded after clock moved backwards")
	}
}
