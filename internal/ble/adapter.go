// Package ble provides the Bluetooth Low Energy link to the throttle
// controller. It hides scanning, connection and GATT discovery behind a
// single connection lifecycle with one inbound byte stream and one
// outbound byte sink.
package ble

import "context"

// Throttle controller UUIDs. The firmware sits behind an HM-10 style UART
// bridge exposing one characteristic for both write and notify.
const (
	ServiceUUID = "0000ffe0-0000-1000-8000-00805f9b34fb"
	CharUUID    = "0000ffe1-0000-1000-8000-00805f9b34fb"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic and waits for the acknowledgement.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
	// MaxWriteSize reports the largest payload usable in a single write.
	MaxWriteSize() (int, error)
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports peripherals advertising the given service UUID to onFound
	// until ctx is cancelled. Each address is reported at most once.
	Scan(ctx context.Context, serviceUUID string, onFound func(Device)) error
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
