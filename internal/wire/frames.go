package wire

import "encoding/json"

// Frame is the JSON envelope exchanged over the session stream in both
// directions. Payload shape depends on Type.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client-to-server frame types.
const (
	FrameSubmit    = "submit"
	FrameKeystroke = "keystroke"
	FramePing      = "ping"
)

// Server-to-client frame types that are not session events.
const (
	FrameSnapshot = "session.snapshot"
	FramePong     = "pong"
	FrameAck      = "ack"
	FrameError    = "error"
)

// Websocket close codes used by the session stream.
const (
	CloseSessionNotFound = 1008
	CloseInternalError   = 1011
	CloseUnauthorized    = 4401
	CloseNotJoined       = 4403
)

// KeystrokePayload is one progress sample from the typing client. ClientTimeMs
// is the client's wall clock; the server normalizes it by the per-user skew
// estimate before storing.
type KeystrokePayload struct {
	ClientTimeMs int64 `json:"clientTimeMs"`
	Length       int   `json:"length"`
	Paste        bool  `json:"paste,omitempty"`
}

// PingPayload carries the client clock for skew estimation.
type PingPayload struct {
	ClientTimeMs int64 `json:"clientTimeMs"`
}

// PongPayload echoes the server clock and the current skew estimate.
type PongPayload struct {
	ServerNowMs int64   `json:"serverNowMs"`
	SkewMs      float64 `json:"skewMs"`
}

// AckPayload acknowledges an accepted state-changing frame.
type AckPayload struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
}

// ErrorPayload is the body of an error frame.
type ErrorPayload struct {
	Code    Code   `json:"code"`
	Details string `json:"details,omitempty"`
}
