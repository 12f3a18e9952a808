package signalling

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/CallsForFriends/signalling-server/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeSession records writes and close calls.
type fakeSession struct {
	id string

	mu        sync.Mutex
	sent      [][]byte
	sendErr   error
	closed    bool
	closeCode int
	closeText string
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.sent = append(s.sent, cp)
	return nil
}

func (s *fakeSession) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeCode = code
	s.closeText = reason
	return nil
}

func (s *fakeSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *fakeSession) sentEnvelopes(t *testing.T) []Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	envs := make([]Envelope, 0, len(s.sent))
	for _, data := range s.sent {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal sent message %q: %v", data, err)
		}
		envs = append(envs, env)
	}
	return envs
}

func (s *fakeSession) lastEnvelope(t *testing.T) Envelope {
	t.Helper()
	envs := s.sentEnvelopes(t)
	if len(envs) == 0 {
		t.Fatal("no messages sent to session")
	}
	return envs[len(envs)-1]
}

// newTestRouter wires a router, sender, registry and metrics over fakes.
func newTestRouter(t *testing.T) (*Router, *Registry, *metrics.Metrics) {
	t.Helper()
	log := testLogger()
	m := metrics.New()
	registry := NewRegistry()
	sender := NewSender(registry, log, m)
	calls := NewCallHandler(sender, log)
	relay := NewRelayHandler(sender, log)
	validator := NewPayloadValidator(log)
	return NewRouter(validator, calls, relay, sender, log, m), registry, m
}
