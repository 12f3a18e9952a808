// Package signalling implements the call-signalling core: the typed message
// protocol, the online-user registry, message routing and forwarding, the
// heartbeat liveness sweep, and the WebSocket coordinator that ties a
// physical connection to an authenticated user.
package signalling

import "encoding/json"

// Type enumerates the wire message types.
type Type string

const (
	TypeAuth        Type = "AUTH"
	TypeAuthSuccess Type = "AUTH_SUCCESS"
	TypeAuthFailed  Type = "AUTH_FAILED"

	TypeCallInit     Type = "CALL_INIT"
	TypeIncomingCall Type = "INCOMING_CALL"
	TypeCallAccept   Type = "CALL_ACCEPT"
	TypeCallReject   Type = "CALL_REJECT"
	TypeCallEnd      Type = "CALL_END"

	TypeWebRTCOffer     Type = "WEBRTC_OFFER"
	TypeWebRTCAnswer    Type = "WEBRTC_ANSWER"
	TypeWebRTCCandidate Type = "WEBRTC_CANDIDATE"

	TypePing  Type = "PING"
	TypePong  Type = "PONG"
	TypeError Type = "ERROR"
)

// Envelope is the wire message wrapper. Absent fields are omitted, never
// emitted as null. From is server-assigned on ingress: whatever the client
// sent is discarded and replaced with the authenticated sender's id.
type Envelope struct {
	Type    Type            `json:"type"`
	From    int64           `json:"from,omitempty"`
	To      int64           `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorEnvelope builds the standard error reply sent back to a user.
func ErrorEnvelope(to int64, message string) Envelope {
	payload, _ := json.Marshal(errorPayload{Message: message})
	return Envelope{
		Type:    TypeError,
		To:      to,
		Payload: payload,
	}
}

type errorPayload struct {
	Message string `json:"message"`
}

// authPayload carries the in-band authentication token.
type authPayload struct {
	Token string `json:"token"`
}

// sdpPayload is the WEBRTC_OFFER / WEBRTC_ANSWER payload shape.
type sdpPayload struct {
	SDP string `json:"sdp"`
}

// rejectPayload is the optional CALL_REJECT payload shape.
type rejectPayload struct {
	Reason string `json:"reason"`
}

// RejectReasonDeclined is substituted when a CALL_REJECT payload is present
// but malformed; call control is never blocked on a cosmetic field.
const RejectReasonDeclined = "DECLINED"
