package remote

import "github.com/chaz8081/throttle-remote/internal/control"

// Message types on the WebSocket.
const (
	TypeSetMax     = "set_max"
	TypeSetCurrent = "set_current"
	TypeRelease    = "release"

	TypeState    = "state"
	TypeReleased = "released"
	TypeError    = "error"
)

// Inbound is a message from the handheld UI.
type Inbound struct {
	Type  string `json:"type"`
	Value *int   `json:"value,omitempty"`
}

// StateMessage mirrors the link and the controller's reported throttle.
type StateMessage struct {
	Type           string  `json:"type"`
	Connection     string  `json:"connection"`
	InboundMax     float64 `json:"inbound_max"`
	InboundCurrent float64 `json:"inbound_current"`
}

// StatusResponse is served by GET /state.
type StatusResponse struct {
	StateMessage
	DesiredMax     int  `json:"desired_max"`
	DesiredCurrent int  `json:"desired_current"`
	Editing        bool `json:"editing"`
}

// EventMessage carries a payload-less event such as "released".
type EventMessage struct {
	Type string `json:"type"`
}

// ErrorMessage rejects an inbound message.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func stateFromSnapshot(s control.Snapshot) StateMessage {
	return StateMessage{
		Type:           TypeState,
		Connection:     s.State.String(),
		InboundMax:     s.Observed.InboundMax,
		InboundCurrent: s.Observed.InboundCurrent,
	}
}
