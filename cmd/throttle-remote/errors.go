package main

import (
	"errors"

	"github.com/chaz8081/throttle-remote/internal/ble"
)

// FormatUserError adds a hint for errors a user can act on.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, ble.ErrAdapterUnavailable):
		return err.Error() + " (is Bluetooth turned on, and does this terminal have Bluetooth permission?)"
	case errors.Is(err, ble.ErrNotConnected):
		return err.Error() + " (the controller disconnected before the frame was sent)"
	default:
		return err.Error()
	}
}
