package signalling

import (
	"log/slog"

	"github.com/CallsForFriends/signalling-server/internal/metrics"
)

// Router dispatches authenticated envelopes to the call and relay handlers.
// Checks run in a fixed order: type, recipient, self-addressing, payload.
// The first failure wins and is reported back to the sender.
type Router struct {
	validator *PayloadValidator
	calls     *CallHandler
	relay     *RelayHandler
	sender    *Sender
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewRouter(validator *PayloadValidator, calls *CallHandler, relay *RelayHandler, sender *Sender, logger *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		validator: validator,
		calls:     calls,
		relay:     relay,
		sender:    sender,
		log:       logger,
		metrics:   m,
	}
}

// Route validates env and dispatches it. env.From must already carry the
// authenticated sender's id. Returns *InvalidMessageError for malformed or
// unsupported envelopes and the handler's error otherwise.
func (r *Router) Route(env Envelope) error {
	if err := r.dispatch(env); err != nil {
		r.metrics.Inc(metrics.MessagesRejected)
		return err
	}
	r.metrics.Inc(metrics.MessagesRouted)
	return nil
}

func (r *Router) dispatch(env Envelope) error {
	if env.Type == "" {
		return invalidf("message type is required")
	}

	switch env.Type {
	case TypePong:
		// Pure activity signal. Liveness was already recorded when the frame
		// arrived; there is nothing to forward and no reply.
		return nil

	case TypePing, TypeCallInit, TypeCallAccept, TypeCallReject, TypeCallEnd,
		TypeWebRTCOffer, TypeWebRTCAnswer, TypeWebRTCCandidate:
		if env.To == 0 {
			return invalidf("recipient is required for %s", env.Type)
		}
		if env.To == env.From {
			return invalidf("cannot call yourself")
		}
		payload, err := r.validator.Validate(env.Type, env.Payload)
		if err != nil {
			return err
		}
		env.Payload = payload

	default:
		// Includes server-only types (AUTH_*, INCOMING_CALL, ERROR): clients
		// may receive them but never send them.
		return invalidf("unsupported message type: %s", env.Type)
	}

	switch env.Type {
	case TypePing:
		// PONG is addressed back to the sender and carries no from: it
		// originates from the server, not from another user.
		return r.sender.Send(Envelope{Type: TypePong, To: env.From})
	case TypeCallInit:
		return r.calls.HandleInit(env)
	case TypeCallAccept:
		return r.calls.HandleAccept(env)
	case TypeCallReject:
		return r.calls.HandleReject(env)
	case TypeCallEnd:
		return r.calls.HandleEnd(env)
	case TypeWebRTCOffer, TypeWebRTCAnswer, TypeWebRTCCandidate:
		return r.relay.Forward(env)
	default:
		return invalidf("unsupported message type: %s", env.Type)
	}
}
