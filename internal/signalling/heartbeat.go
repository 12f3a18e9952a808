package signalling

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CallsForFriends/signalling-server/internal/metrics"
	"github.com/CallsForFriends/signalling-server/internal/ratelimit"
)

// Monitor periodically sweeps online users, pings the live ones and evicts
// those that stayed silent past the missed-ping budget. Any inbound message
// counts as activity, so a chatty client is never pinged into eviction.
type Monitor struct {
	registry    *Registry
	sender      *Sender
	clock       ratelimit.Clock
	interval    time.Duration
	idleTimeout time.Duration
	maxMissed   int
	log         *slog.Logger
	metrics     *metrics.Metrics
}

func NewMonitor(registry *Registry, sender *Sender, clock ratelimit.Clock, interval, idleTimeout time.Duration, maxMissed int, logger *slog.Logger, m *metrics.Metrics) *Monitor {
	return &Monitor{
		registry:    registry,
		sender:      sender,
		clock:       clock,
		interval:    interval,
		idleTimeout: idleTimeout,
		maxMissed:   maxMissed,
		log:         logger,
		metrics:     m,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.clock.Now())
		}
	}
}

// Sweep runs one liveness round at the given instant.
func (m *Monitor) Sweep(now time.Time) {
	for _, userID := range m.registry.Online() {
		sess, ok := m.registry.Get(userID)
		if !ok || !sess.IsOpen() {
			// Already closed elsewhere; the read loop's cleanup will
			// unregister it.
			continue
		}

		switch m.registry.SweepUser(userID, now, m.idleTimeout, m.maxMissed) {
		case SweepEvict:
			m.log.Info("heartbeat timeout, closing session",
				"user", userID, "conn", sess.ID())
			m.metrics.Inc(metrics.HeartbeatEvicted)
			_ = sess.Close(websocket.CloseGoingAway, "Heartbeat timeout")
			m.registry.Unregister(userID, sess)
		case SweepPing:
			m.metrics.Inc(metrics.PingsSent)
			if err := m.sender.SendTo(sess, Envelope{Type: TypePing, To: userID}); err != nil {
				m.log.Warn("heartbeat ping failed", "user", userID, "err", err)
			}
		}
	}
}
