package control

import (
	"fmt"

	"github.com/chaz8081/throttle-remote/internal/ble"
)

// ConnectionState is the connection state exposed to UI surfaces.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Scanning
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// fromLinkState folds the transport lifecycle onto ConnectionState.
func fromLinkState(s ble.State) ConnectionState {
	switch s {
	case ble.StateScanning:
		return Scanning
	case ble.StateConnecting:
		return Connecting
	case ble.StateConnected:
		return Connected
	default:
		return Disconnected
	}
}

// Observed is the last throttle state reported by the controller.
type Observed struct {
	InboundMax     float64
	InboundCurrent float64
}

// Stats counts outbound and inbound traffic since the core was created.
type Stats struct {
	FramesSent     int
	WritesRejected int
	FramesReceived int
	FramesDropped  int // malformed inbound frames
}

// Snapshot is a read-only copy of the core state for UI surfaces.
type Snapshot struct {
	State          ConnectionState
	Observed       Observed
	DesiredMax     int
	DesiredCurrent int
	Editing        bool
	Stats          Stats
}
