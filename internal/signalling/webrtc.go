package signalling

import "log/slog"

// RelayHandler forwards WebRTC negotiation messages between peers. The
// server never inspects SDP contents or participates in ICE; it is a pure
// relay for offers, answers and candidates.
type RelayHandler struct {
	sender *Sender
	log    *slog.Logger
}

func NewRelayHandler(sender *Sender, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{sender: sender, log: logger}
}

// Forward relays the envelope to its recipient unchanged.
func (h *RelayHandler) Forward(env Envelope) error {
	h.log.Debug("relaying webrtc message", "type", env.Type, "from", env.From, "to", env.To)
	return h.sender.Send(env)
}
