package signalling

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CallsForFriends/signalling-server/internal/metrics"
)

func newTestMonitor(t *testing.T, clock *fakeClock, m *metrics.Metrics) (*Monitor, *Registry) {
	t.Helper()
	log := testLogger()
	registry := NewRegistry()
	sender := NewSender(registry, log, m)
	monitor := NewMonitor(registry, sender, clock, 30*time.Second, time.Minute, 2, log, m)
	return monitor, registry
}

func TestMonitor_PingsLiveUsers(t *testing.T) {
	clock := newFakeClock()
	m := metrics.New()
	monitor, registry := newTestMonitor(t, clock, m)

	sess := &fakeSession{id: "a"}
	registry.Register(1, sess, clock.Now())

	clock.Advance(30 * time.Second)
	monitor.Sweep(clock.Now())

	got := sess.lastEnvelope(t)
	if got.Type != TypePing || got.To != 1 {
		t.Fatalf("got %+v, want PING to user 1", got)
	}
	if m.Get(metrics.PingsSent) != 1 {
		t.Errorf("pings=%d, want 1", m.Get(metrics.PingsSent))
	}
}

func TestMonitor_EvictsSilentUserAfterMissedBudget(t *testing.T) {
	clock := newFakeClock()
	m := metrics.New()
	monitor, registry := newTestMonitor(t, clock, m)

	sess := &fakeSession{id: "a"}
	registry.Register(1, sess, clock.Now())

	// Stay silent past the idle timeout. Misses 1 and 2 still ping; the
	// third sweep evicts.
	for i := 0; i < 2; i++ {
		clock.Advance(2 * time.Minute)
		monitor.Sweep(clock.Now())
		if !sess.IsOpen() {
			t.Fatalf("session closed on miss %d, want open", i+1)
		}
	}

	clock.Advance(2 * time.Minute)
	monitor.Sweep(clock.Now())

	if sess.IsOpen() {
		t.Fatal("session still open past the missed-ping budget")
	}
	if sess.closeCode != websocket.CloseGoingAway {
		t.Errorf("close code=%d, want going away", sess.closeCode)
	}
	if sess.closeText != "Heartbeat timeout" {
		t.Errorf("close reason=%q, want Heartbeat timeout", sess.closeText)
	}
	if !registry.IsOffline(1) {
		t.Error("evicted user still registered")
	}
	if m.Get(metrics.HeartbeatEvicted) != 1 {
		t.Errorf("evicted=%d, want 1", m.Get(metrics.HeartbeatEvicted))
	}
}

func TestMonitor_ActivityAvertsEviction(t *testing.T) {
	clock := newFakeClock()
	m := metrics.New()
	monitor, registry := newTestMonitor(t, clock, m)

	sess := &fakeSession{id: "a"}
	registry.Register(1, sess, clock.Now())

	clock.Advance(2 * time.Minute)
	monitor.Sweep(clock.Now())

	// Any inbound message resets the countdown, not just PONG.
	registry.RecordActivity(1, clock.Now())

	for i := 0; i < 3; i++ {
		clock.Advance(30 * time.Second)
		registry.RecordActivity(1, clock.Now())
		monitor.Sweep(clock.Now())
	}

	if !sess.IsOpen() {
		t.Fatal("active session was evicted")
	}
}

func TestMonitor_SkipsClosedSessions(t *testing.T) {
	clock := newFakeClock()
	m := metrics.New()
	monitor, registry := newTestMonitor(t, clock, m)

	sess := &fakeSession{id: "a"}
	registry.Register(1, sess, clock.Now())
	_ = sess.Close(websocket.CloseNormalClosure, "bye")

	clock.Advance(30 * time.Second)
	monitor.Sweep(clock.Now())

	if m.Get(metrics.PingsSent) != 0 {
		t.Errorf("pings=%d, want 0 for a closed session", m.Get(metrics.PingsSent))
	}
}
