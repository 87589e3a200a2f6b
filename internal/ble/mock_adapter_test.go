package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// mockCharacteristic records writes and allows subscribing.
type mockCharacteristic struct {
	mu       sync.Mutex
	writes   [][]byte
	callback func([]byte)
	writeErr error
	maxWrite int
}

func (c *mockCharacteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return c.writeErr
}

func (c *mockCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

func (c *mockCharacteristic) MaxWriteSize() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxWrite == 0 {
		return 0, errors.New("mock: mtu unknown")
	}
	return c.maxWrite, nil
}

// SimulateNotification sends a notification to the subscriber.
func (c *mockCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *mockCharacteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// mockConnection simulates a BLE connection.
type mockConnection struct {
	mu           sync.Mutex
	address      string
	char         *mockCharacteristic
	discoverErr  error
	disconnectCb func()
	disconnected bool
}

func newMockConnection(address string) *mockConnection {
	return &mockConnection{
		address: address,
		char:    &mockCharacteristic{maxWrite: 20},
	}
}

func (c *mockConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discoverErr != nil {
		return nil, c.discoverErr
	}
	if charUUID != CharUUID {
		return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
	}
	return c.char, nil
}

func (c *mockConnection) Disconnect() error {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
	c.SimulateDisconnect()
	return nil
}

func (c *mockConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback.
func (c *mockConnection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// mockAdapter simulates the BLE adapter. Scan reports the configured
// devices and then blocks until cancelled, like a real radio.
type mockAdapter struct {
	mu          sync.Mutex
	devices     []Device
	enableErrs  []error // consumed one per Enable call
	discoverErr error   // applied to the next connection only
	connects    []string
	connections []*mockConnection
}

func newMockAdapter(devices []Device) *mockAdapter {
	return &mockAdapter{devices: devices}
}

func (a *mockAdapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.enableErrs) == 0 {
		return nil
	}
	err := a.enableErrs[0]
	a.enableErrs = a.enableErrs[1:]
	return err
}

func (a *mockAdapter) Scan(ctx context.Context, _ string, onFound func(Device)) error {
	a.mu.Lock()
	devices := append([]Device(nil), a.devices...)
	a.mu.Unlock()
	for _, d := range devices {
		onFound(d)
	}
	<-ctx.Done()
	return nil
}

func (a *mockAdapter) Connect(_ context.Context, address string) (Connection, error) {
	conn := newMockConnection(address)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.discoverErr != nil {
		conn.discoverErr = a.discoverErr
		a.discoverErr = nil
	}
	a.connects = append(a.connects, address)
	a.connections = append(a.connections, conn)
	return conn, nil
}

// latestConnection returns the most recently created connection (thread-safe).
func (a *mockAdapter) latestConnection() *mockConnection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.connections) == 0 {
		return nil
	}
	return a.connections[len(a.connections)-1]
}

func (a *mockAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.connects)
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ Adapter = (*mockAdapter)(nil)
}

func TestMockConnectionImplementsInterface(t *testing.T) {
	var _ Connection = (*mockConnection)(nil)
}

func TestMockCharacteristicImplementsInterface(t *testing.T) {
	var _ Characteristic = (*mockCharacteristic)(nil)
}
