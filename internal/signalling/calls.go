package signalling

import (
	"errors"
	"log/slog"
)

// CallHandler implements call-control semantics: invites, accept, reject
// and hangup. WebRTC session negotiation is handled separately by
// RelayHandler.
type CallHandler struct {
	sender *Sender
	log    *slog.Logger
}

func NewCallHandler(sender *Sender, logger *slog.Logger) *CallHandler {
	return &CallHandler{sender: sender, log: logger}
}

// HandleInit turns a CALL_INIT from the caller into an INCOMING_CALL for
// the callee. The caller's payload is dropped: the callee only needs to
// know who is calling, and negotiation data follows in WEBRTC_* messages.
func (h *CallHandler) HandleInit(env Envelope) error {
	h.log.Info("call initiated", "from", env.From, "to", env.To)
	return h.sender.Send(Envelope{
		Type: TypeIncomingCall,
		From: env.From,
		To:   env.To,
	})
}

// HandleAccept forwards a callee's CALL_ACCEPT to the caller.
func (h *CallHandler) HandleAccept(env Envelope) error {
	h.log.Info("call accepted", "from", env.From, "to", env.To)
	return h.sender.Send(env)
}

// HandleReject forwards a callee's CALL_REJECT to the caller. The payload
// has already been normalized to carry a reason.
func (h *CallHandler) HandleReject(env Envelope) error {
	h.log.Info("call rejected", "from", env.From, "to", env.To)
	return h.sender.Send(env)
}

// HandleEnd forwards a hangup. An offline recipient is not an error here:
// the other side may have disconnected first, and hanging up on a dead
// call must always succeed.
func (h *CallHandler) HandleEnd(env Envelope) error {
	h.log.Info("call ended", "from", env.From, "to", env.To)
	err := h.sender.Send(env)
	var offline *OfflineError
	if errors.As(err, &offline) {
		h.log.Debug("hangup recipient already offline", "to", env.To)
		return nil
	}
	return err
}
