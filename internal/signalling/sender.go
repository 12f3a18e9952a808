package signalling

import (
	"encoding/json"
	"log/slog"

	"github.com/CallsForFriends/signalling-server/internal/metrics"
)

// Sender serializes envelopes and delivers them to the recipient's live
// session. Delivery is at-most-once: there is no queueing for offline users
// and no retry on write failure.
type Sender struct {
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewSender(registry *Registry, logger *slog.Logger, m *metrics.Metrics) *Sender {
	return &Sender{registry: registry, log: logger, metrics: m}
}

// Send delivers env to env.To. Returns an *OfflineError when the recipient
// has no session and a *SendError when the transport write fails.
func (s *Sender) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	// A registered-but-closed session is indistinguishable from offline to
	// peers: the heartbeat monitor or read-loop cleanup just hasn't caught
	// up with it yet.
	sess, ok := s.registry.Get(env.To)
	if !ok || !sess.IsOpen() {
		s.metrics.Inc(metrics.OfflineRecipient)
		return &OfflineError{UserID: env.To}
	}
	if err := sess.Send(data); err != nil {
		s.metrics.Inc(metrics.SendFailure)
		return &SendError{UserID: env.To, Err: err}
	}
	return nil
}

// SendTo delivers env directly over the given session, bypassing the
// registry. Used for replies to connections that are not registered yet,
// such as authentication failures.
func (s *Sender) SendTo(sess Session, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := sess.Send(data); err != nil {
		return &SendError{UserID: env.To, Err: err}
	}
	return nil
}

// SendBestEffort delivers env and logs instead of propagating failures.
// Fire-and-forget notifications use this so one slow or broken recipient
// never fails the sender's own request.
func (s *Sender) SendBestEffort(env Envelope) {
	if err := s.Send(env); err != nil {
		s.log.Warn("best-effort send failed",
			"type", env.Type, "to", env.To, "err", err)
	}
}
