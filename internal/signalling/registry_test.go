package signalling

import (
	"testing"
	"time"
)

func TestRegistry_RegisterReturnsPrevious(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	first := &fakeSession{id: "a"}
	if prev := r.Register(7, first, now); prev != nil {
		t.Fatalf("prev=%v, want nil on first register", prev)
	}

	second := &fakeSession{id: "b"}
	prev := r.Register(7, second, now)
	if prev != first {
		t.Fatalf("prev=%v, want the first session", prev)
	}

	got, ok := r.Get(7)
	if !ok || got != second {
		t.Fatalf("Get(7)=%v,%v, want the second session", got, ok)
	}
}

func TestRegistry_UnregisterOnlyRemovesCurrentSession(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	old := &fakeSession{id: "old"}
	r.Register(7, old, now)
	replacement := &fakeSession{id: "new"}
	r.Register(7, replacement, now)

	// The evicted connection's cleanup must not tear down its replacement.
	if r.Unregister(7, old) {
		t.Fatal("Unregister removed a session it no longer owns")
	}
	if r.IsOffline(7) {
		t.Fatal("user went offline after stale unregister")
	}

	if !r.Unregister(7, replacement) {
		t.Fatal("Unregister failed for the current session")
	}
	if !r.IsOffline(7) {
		t.Fatal("user still online after unregister")
	}
}

func TestRegistry_OnlineSortedAndCount(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	for _, id := range []int64{42, 7, 19} {
		r.Register(id, &fakeSession{}, now)
	}

	if r.Count() != 3 {
		t.Fatalf("Count=%d, want 3", r.Count())
	}
	got := r.Online()
	want := []int64{7, 19, 42}
	if len(got) != len(want) {
		t.Fatalf("Online=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Online=%v, want %v", got, want)
		}
	}
}

func TestRegistry_SweepUser(t *testing.T) {
	const (
		idleTimeout = time.Minute
		maxMissed   = 2
	)
	r := NewRegistry()
	base := time.Now()
	r.Register(7, &fakeSession{}, base)

	// Fresh activity: ping without accumulating misses.
	if a := r.SweepUser(7, base.Add(30*time.Second), idleTimeout, maxMissed); a != SweepPing {
		t.Fatalf("action=%v, want SweepPing while fresh", a)
	}

	// Idle past the timeout: still pinged until the budget runs out.
	for i := 0; i < maxMissed; i++ {
		if a := r.SweepUser(7, base.Add(2*time.Minute), idleTimeout, maxMissed); a != SweepPing {
			t.Fatalf("action=%v on miss %d, want SweepPing", a, i+1)
		}
	}
	if a := r.SweepUser(7, base.Add(2*time.Minute), idleTimeout, maxMissed); a != SweepEvict {
		t.Fatalf("action=%v, want SweepEvict past the missed budget", a)
	}
}

func TestRegistry_RecordActivityResetsMissedPings(t *testing.T) {
	const (
		idleTimeout = time.Minute
		maxMissed   = 1
	)
	r := NewRegistry()
	base := time.Now()
	r.Register(7, &fakeSession{}, base)

	if a := r.SweepUser(7, base.Add(2*time.Minute), idleTimeout, maxMissed); a != SweepPing {
		t.Fatalf("action=%v, want SweepPing on first miss", a)
	}

	r.RecordActivity(7, base.Add(3*time.Minute))

	if a := r.SweepUser(7, base.Add(3*time.Minute+time.Second), idleTimeout, maxMissed); a != SweepPing {
		t.Fatalf("action=%v, want SweepPing after activity reset", a)
	}
}

func TestRegistry_SweepUnknownUserSkips(t *testing.T) {
	r := NewRegistry()
	if a := r.SweepUser(99, time.Now(), time.Minute, 2); a != SweepSkip {
		t.Fatalf("action=%v, want SweepSkip for unregistered user", a)
	}
}
