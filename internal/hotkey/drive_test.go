package hotkey

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/throttle-remote/internal/ble"
	"github.com/chaz8081/throttle-remote/internal/control"
)

// linkStub is a connected transport that records writes.
type linkStub struct {
	mu      sync.Mutex
	onState func(ble.State)
	writes  []string
}

func (l *linkStub) Connect(context.Context) error { return nil }

func (l *linkStub) Write(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes = append(l.writes, string(data))
	return nil
}

func (l *linkStub) Subscribe(onState func(ble.State), onFrame func([]byte)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onState = onState
	return func() {}
}

func (l *linkStub) Writes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.writes...)
}

func (l *linkStub) connected() {
	l.mu.Lock()
	cb := l.onState
	l.mu.Unlock()
	cb(ble.StateConnected)
}

func startCore(t *testing.T, ctx context.Context) (*control.Core, *linkStub) {
	t.Helper()
	link := &linkStub{}
	core := control.New(link, nil, control.Options{Window: 20 * time.Millisecond, InitialMax: 50})
	require.NoError(t, core.Start(ctx))
	link.connected()
	require.Eventually(t, func() bool {
		return core.Snapshot().State == control.Connected
	}, time.Second, time.Millisecond)
	return core, link
}

func TestHeldKeyIsCommandedOffOnShutdown(t *testing.T) {
	core, link := startCore(t, context.Background())

	driveCtx, stopDrive := context.WithCancel(context.Background())
	events := make(chan Event, 1)
	driven := make(chan struct{})
	go func() {
		Drive(driveCtx, events, core, 40)
		close(driven)
	}()

	events <- Event{Type: EventEngage}
	require.Eventually(t, func() bool { return len(link.Writes()) == 1 }, time.Second, time.Millisecond)

	// Shutdown order used by the run command: UIs first, then the core.
	stopDrive()
	<-driven
	require.NoError(t, core.Close())
	<-core.Done()

	assert.Equal(t, []string{"50,40\n", "50,-1\n"}, link.Writes())
}

func TestHeldKeyIsCommandedOffWhenCoreStopsFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	core, link := startCore(t, ctx)

	events := make(chan Event, 1)
	events <- Event{Type: EventEngage}
	driven := make(chan struct{})
	go func() {
		Drive(ctx, events, core, 40)
		close(driven)
	}()
	require.Eventually(t, func() bool { return len(link.Writes()) == 1 }, time.Second, time.Millisecond)

	cancel()
	<-driven
	<-core.Done()

	writes := link.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "50,-1\n", writes[1])
}
