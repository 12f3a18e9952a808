package signalling

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// PayloadValidator performs the per-type structural checks on envelope
// payloads before routing.
type PayloadValidator struct {
	log *slog.Logger
}

func NewPayloadValidator(logger *slog.Logger) *PayloadValidator {
	return &PayloadValidator{log: logger}
}

// Validate checks payload against the declared type and returns the payload
// to forward. Only CALL_REJECT is ever rewritten: a present-but-malformed
// reject payload is replaced with the default DECLINED reason instead of
// failing the message.
func (v *PayloadValidator) Validate(t Type, payload json.RawMessage) (json.RawMessage, error) {
	switch t {
	case TypeWebRTCOffer:
		return payload, validateSDP(payload, "WebRTC offer")
	case TypeWebRTCAnswer:
		return payload, validateSDP(payload, "WebRTC answer")
	case TypeWebRTCCandidate:
		return payload, validateCandidate(payload)
	case TypeCallReject:
		return v.normalizeReject(payload), nil
	case TypeCallInit, TypeCallAccept, TypeCallEnd, TypeIncomingCall, TypePing, TypePong:
		// Payload is optional and unchecked for these.
		return payload, nil
	default:
		v.log.Warn("no payload validation for message type", "type", t)
		return payload, nil
	}
}

func validateSDP(payload json.RawMessage, what string) error {
	if payloadAbsent(payload) {
		return invalidf("%s must have payload", what)
	}
	var p sdpPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return invalidf("invalid %s payload: %v", what, err)
	}
	if p.SDP == "" {
		return invalidf("SDP is required for %s", what)
	}
	return nil
}

func validateCandidate(payload json.RawMessage) error {
	if payloadAbsent(payload) {
		return invalidf("WebRTC candidate must have payload")
	}
	// webrtc.ICECandidateInit is the exact wire shape:
	// {candidate, sdpMid?, sdpMLineIndex?, usernameFragment?}.
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &init); err != nil {
		return invalidf("invalid WebRTC candidate payload: %v", err)
	}
	if init.Candidate == "" {
		return invalidf("candidate is required for ICE candidate")
	}
	return nil
}

func (v *PayloadValidator) normalizeReject(payload json.RawMessage) json.RawMessage {
	if payloadAbsent(payload) {
		return nil
	}
	var p rejectPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Reason == "" {
		v.log.Warn("invalid call reject payload, using default reason")
		normalized, _ := json.Marshal(rejectPayload{Reason: RejectReasonDeclined})
		return normalized
	}
	return payload
}

func payloadAbsent(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
