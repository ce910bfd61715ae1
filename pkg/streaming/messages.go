// Package streaming defines the messages exchanged with a remote map renderer.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/flyover/pkg/core"
)

// Message type constants matching the renderer protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeFlyTo        = "fly_to"
	TypeStopFlyover  = "stop_flyover"
	TypeIndexChanged = "index_changed"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the renderer's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces a session and the full itinerary so the
// renderer can preload the area.
type StartSessionPayload struct {
	Session *core.Session     `json:"session"`
	Points  []core.Coordinate `json:"points"`
}

// EndSessionPayload closes the session opened by start_session.
type EndSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// IndexChangedPayload reports the player's new position.
type IndexChangedPayload struct {
	Index int `json:"index"`
}
