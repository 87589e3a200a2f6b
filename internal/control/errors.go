package control

import "errors"

// Error kinds surfaced in logs. None of them stops the core.
var (
	// ErrTransportUnavailable means the radio is off or unsupported; the
	// transport keeps retrying and the state stays Disconnected.
	ErrTransportUnavailable = errors.New("control: transport unavailable")
	// ErrConnectionDropped means an established link went away. Pending
	// throttle values are discarded, never replayed.
	ErrConnectionDropped = errors.New("control: connection dropped")
	// ErrWriteRejected means an acknowledged write failed. It is not
	// retried; the next user intent is the retry.
	ErrWriteRejected = errors.New("control: write rejected")
)
