package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

var testController = Device{Name: "MotoThrottle", Address: "AA:BB:CC:DD:EE:FF", RSSI: -50}

func fastOpts() LinkOptions {
	opts := DefaultLinkOptions()
	opts.BackoffBase = time.Millisecond
	opts.ReconnectMax = 5 * time.Millisecond
	opts.CloseTimeout = 500 * time.Millisecond
	return opts
}

// stateRecorder collects state transitions and frames delivered to a subscriber.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
	frames [][]byte
}

func (r *stateRecorder) onState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) onFrame(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, b)
}

func (r *stateRecorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *stateRecorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

func startLink(t *testing.T, adapter *mockAdapter) (*Link, *stateRecorder) {
	t.Helper()
	link := NewLink(adapter, fastOpts())
	rec := &stateRecorder{}
	link.Subscribe(rec.onState, rec.onFrame)
	require.NoError(t, link.Connect(context.Background()))
	t.Cleanup(func() { _ = link.Close() })
	return link, rec
}

func waitConnected(t *testing.T, link *Link) {
	t.Helper()
	require.Eventually(t, func() bool { return link.State() == StateConnected }, waitFor, time.Millisecond)
}

func TestLinkConnectSequence(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link, rec := startLink(t, adapter)

	want := []State{StateScanning, StateConnecting, StateConnected}
	require.Eventually(t, func() bool { return assert.ObjectsAreEqual(want, rec.States()) }, waitFor, time.Millisecond)
	assert.Equal(t, 20, link.MaxWriteSize())
	assert.Equal(t, 1, adapter.connectCount())
}

func TestLinkConnectIsIdempotent(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link, _ := startLink(t, adapter)

	require.NoError(t, link.Connect(context.Background()))
	waitConnected(t, link)

	assert.Equal(t, 1, adapter.connectCount())
}

func TestLinkUsesFirstAdvertiserOnly(t *testing.T) {
	adapter := newMockAdapter([]Device{
		testController,
		{Name: "Other", Address: "11:22:33:44:55:66", RSSI: -30},
	})
	link, _ := startLink(t, adapter)
	waitConnected(t, link)

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	assert.Equal(t, []string{testController.Address}, adapter.connects)
}

func TestLinkWriteWhenNotConnected(t *testing.T) {
	link := NewLink(newMockAdapter(nil), fastOpts())

	err := link.Write([]byte("50,-1\n"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLinkWriteWhenConnected(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link, _ := startLink(t, adapter)
	waitConnected(t, link)

	require.NoError(t, link.Write([]byte("80,50\n")))

	writes := adapter.latestConnection().char.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "80,50\n", string(writes[0]))
}

func TestLinkWriteErrorIsNotRetried(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link, _ := startLink(t, adapter)
	waitConnected(t, link)

	char := adapter.latestConnection().char
	char.mu.Lock()
	char.writeErr = errors.New("att: write rejected")
	char.mu.Unlock()

	err := link.Write([]byte("80,50\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write rejected")
	assert.Len(t, char.Writes(), 1)
}

func TestLinkDeliversNotifications(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link, rec := startLink(t, adapter)
	waitConnected(t, link)

	char := adapter.latestConnection().char
	char.SimulateNotification([]byte("60,12\n"))
	char.SimulateNotification([]byte("60,13\n"))

	frames := rec.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "60,12\n", string(frames[0]))
	assert.Equal(t, "60,13\n", string(frames[1]))
}

func TestLinkReconnectsAfterDrop(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link, rec := startLink(t, adapter)
	waitConnected(t, link)

	first := adapter.latestConnection()
	first.SimulateDisconnect()

	require.Eventually(t, func() bool { return adapter.connectCount() == 2 }, waitFor, time.Millisecond)
	waitConnected(t, link)
	assert.Contains(t, rec.States(), StateDisconnected)

	// Writes go to the fresh characteristic, never the stale one.
	require.NoError(t, link.Write([]byte("40,-1\n")))
	assert.Empty(t, first.char.Writes())
	assert.Len(t, adapter.latestConnection().char.Writes(), 1)

	// Late notifications from the old connection are dropped.
	before := len(rec.Frames())
	first.char.SimulateNotification([]byte("1,1\n"))
	assert.Len(t, rec.Frames(), before)
}

func TestLinkRetriesAfterDiscoveryFailure(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	adapter.discoverErr = errors.New("gatt: service discovery failed")
	link, rec := startLink(t, adapter)

	waitConnected(t, link)
	assert.Equal(t, 2, adapter.connectCount())
	assert.Contains(t, rec.States(), StateDisconnected)
	adapter.mu.Lock()
	failed := adapter.connections[0]
	adapter.mu.Unlock()
	failed.mu.Lock()
	defer failed.mu.Unlock()
	assert.True(t, failed.disconnected, "failed connection should be torn down")
}

func TestLinkRetriesWhenAdapterUnavailable(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	adapter.enableErrs = []error{errors.New("radio off"), errors.New("radio off")}
	link, rec := startLink(t, adapter)

	waitConnected(t, link)
	states := rec.States()
	require.NotEmpty(t, states)
	assert.Equal(t, StateDisconnected, states[0])
}

func TestLinkCloseStopsLoop(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link, rec := startLink(t, adapter)
	waitConnected(t, link)

	require.NoError(t, link.Close())

	assert.Equal(t, StateIdle, link.State())
	assert.ErrorIs(t, link.Write([]byte("1,1\n")), ErrNotConnected)
	states := rec.States()
	assert.Equal(t, StateIdle, states[len(states)-1])

	// Closing twice is harmless.
	require.NoError(t, link.Close())
}

func TestLinkUnsubscribe(t *testing.T) {
	adapter := newMockAdapter([]Device{testController})
	link := NewLink(adapter, fastOpts())
	rec := &stateRecorder{}
	unsubscribe := link.Subscribe(rec.onState, rec.onFrame)
	unsubscribe()
	unsubscribe()

	require.NoError(t, link.Connect(context.Background()))
	t.Cleanup(func() { _ = link.Close() })
	waitConnected(t, link)

	adapter.latestConnection().char.SimulateNotification([]byte("1,1\n"))
	assert.Empty(t, rec.States())
	assert.Empty(t, rec.Frames())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "scanning", StateScanning.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "State(42)", State(42).String())
}
