//go:build !darwin && !linux

package ble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
)

func newGoBLEDevice() (ble.Device, error) {
	return nil, fmt.Errorf("go-ble backend is not supported on %s, use the tinygo backend", runtime.GOOS)
}
