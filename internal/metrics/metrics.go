package metrics

import "sync"

// Event counter names used across the server.
const (
	Connections             = "connections"
	AuthFailure             = "auth_failure"
	DuplicateSessionEvicted = "duplicate_session_evicted"
	HeartbeatEvicted        = "heartbeat_evicted"
	MessagesRouted          = "messages_routed"
	MessagesRejected        = "messages_rejected"
	OfflineRecipient        = "offline_recipient"
	SendFailure             = "send_failure"
	PingsSent               = "pings_sent"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// It keeps the signalling core testable without binding it to a metrics
// backend; counters are exposed for scraping via PrometheusHandler.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
