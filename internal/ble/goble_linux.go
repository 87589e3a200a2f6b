package ble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func newGoBLEDevice() (ble.Device, error) {
	return linux.NewDevice()
}
