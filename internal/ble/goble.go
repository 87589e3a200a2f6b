package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
)

// bluetoothBaseSuffix is the tail of the Bluetooth base UUID
// (0000xxxx-0000-1000-8000-00805f9b34fb) without dashes.
const bluetoothBaseSuffix = "00001000800000805f9b34fb"

// GoBLEAdapter wraps go-ble/ble. It is an alternative to TinyGoAdapter for
// hosts where the go-ble HCI/CoreBluetooth drivers behave better.
type GoBLEAdapter struct {
	once      sync.Once
	enableErr error
}

// NewGoBLEAdapter creates an adapter backed by the platform go-ble device.
func NewGoBLEAdapter() *GoBLEAdapter {
	return &GoBLEAdapter{}
}

func (a *GoBLEAdapter) Enable() error {
	a.once.Do(func() {
		d, err := newGoBLEDevice()
		if err != nil {
			a.enableErr = fmt.Errorf("ble: create go-ble device: %w", err)
			return
		}
		ble.SetDefaultDevice(d)
	})
	return a.enableErr
}

func (a *GoBLEAdapter) Scan(ctx context.Context, serviceUUID string, onFound func(Device)) error {
	want := normalizeUUID(serviceUUID)

	var mu sync.Mutex
	seen := make(map[string]bool)

	filter := func(adv ble.Advertisement) bool {
		for _, u := range adv.Services() {
			if normalizeUUID(u.String()) == want {
				return true
			}
		}
		return false
	}

	handler := func(adv ble.Advertisement) {
		addr := adv.Addr().String()
		mu.Lock()
		if seen[addr] {
			mu.Unlock()
			return
		}
		seen[addr] = true
		mu.Unlock()

		onFound(Device{
			Name:    adv.LocalName(),
			Address: addr,
			RSSI:    adv.RSSI(),
		})
	}

	err := ble.Scan(ctx, false, handler, filter)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *GoBLEAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w", address, err)
	}
	return &goBLEConnection{client: client}, nil
}

// Compile-time check that GoBLEAdapter implements Adapter.
var _ Adapter = (*GoBLEAdapter)(nil)

type goBLEConnection struct {
	client ble.Client
}

func (c *goBLEConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := ble.Parse(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse service UUID: %w", err)
	}
	chUUID, err := ble.Parse(charUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: parse characteristic UUID: %w", err)
	}

	svcs, err := c.client.DiscoverServices([]ble.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := c.client.DiscoverCharacteristics([]ble.UUID{chUUID}, svcs[0])
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}

	// Subscribe needs the CCCD, which is only known after descriptor discovery.
	if _, err := c.client.DiscoverDescriptors(nil, chars[0]); err != nil {
		return nil, fmt.Errorf("ble: discover descriptors: %w", err)
	}

	return &goBLECharacteristic{client: c.client, char: chars[0]}, nil
}

func (c *goBLEConnection) Disconnect() error {
	return c.client.CancelConnection()
}

func (c *goBLEConnection) OnDisconnect(cb func()) {
	go func() {
		<-c.client.Disconnected()
		cb()
	}()
}

type goBLECharacteristic struct {
	client ble.Client
	char   *ble.Characteristic
}

func (c *goBLECharacteristic) Write(data []byte) error {
	return c.client.WriteCharacteristic(c.char, data, false)
}

func (c *goBLECharacteristic) Subscribe(cb func([]byte)) error {
	return c.client.Subscribe(c.char, false, func(req []byte) {
		cp := make([]byte, len(req))
		copy(cp, req)
		cb(cp)
	})
}

func (c *goBLECharacteristic) MaxWriteSize() (int, error) {
	conn := c.client.Conn()
	if conn == nil {
		return 0, errors.New("ble: no underlying connection")
	}
	return conn.TxMTU() - attHeaderSize, nil
}

// normalizeUUID reduces a UUID string to lowercase hex without dashes and
// collapses Bluetooth base UUIDs to their 16-bit short form, so "FFE0" and
// "0000ffe0-0000-1000-8000-00805f9b34fb" compare equal.
func normalizeUUID(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "-", ""))
	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, bluetoothBaseSuffix) {
		return s[4:8]
	}
	return s
}
