package ble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newGoBLEDevice() (ble.Device, error) {
	return darwin.NewDevice()
}
