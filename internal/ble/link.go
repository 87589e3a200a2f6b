package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNotConnected is returned by Write when the link is not ready.
	// Nothing is queued.
	ErrNotConnected = errors.New("ble: not connected")
	// ErrAdapterUnavailable wraps failures to power on the radio.
	ErrAdapterUnavailable = errors.New("ble: adapter unavailable")
	// ErrLinkLost is reported when an established connection drops.
	ErrLinkLost = errors.New("ble: link lost")
)

// State is the connection lifecycle state of a Link.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LinkOptions configures the Link behavior.
type LinkOptions struct {
	ServiceUUID    string
	CharUUID       string
	ConnectTimeout time.Duration // per connection attempt
	BackoffBase    time.Duration // first reconnect delay
	ReconnectMax   time.Duration // reconnect backoff cap
	CloseTimeout   time.Duration // how long Close waits for the loop to exit
}

// DefaultLinkOptions returns sensible defaults.
func DefaultLinkOptions() LinkOptions {
	return LinkOptions{
		ServiceUUID:    ServiceUUID,
		CharUUID:       CharUUID,
		ConnectTimeout: 10 * time.Second,
		BackoffBase:    time.Second,
		ReconnectMax:   30 * time.Second,
		CloseTimeout:   2 * time.Second,
	}
}

type subscriber struct {
	onState func(State)
	onFrame func([]byte)
}

// Link manages the connection to the throttle controller: scan for the
// service, connect to the first advertiser, discover the characteristic,
// subscribe to notifications, and start over whenever the link drops.
type Link struct {
	adapter Adapter
	opts    LinkOptions

	mu       sync.Mutex
	state    State
	conn     Connection
	char     Characteristic
	maxWrite int
	enabled  bool
	cancel   context.CancelFunc
	done     chan struct{}
	subs     map[int]subscriber
	nextSub  int

	// writeMu keeps at most one acknowledged write in flight.
	writeMu sync.Mutex
}

// NewLink creates a Link over the given adapter. Zero option fields are
// filled from DefaultLinkOptions.
func NewLink(adapter Adapter, opts LinkOptions) *Link {
	def := DefaultLinkOptions()
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = def.ServiceUUID
	}
	if opts.CharUUID == "" {
		opts.CharUUID = def.CharUUID
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = def.BackoffBase
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = def.ReconnectMax
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = def.CloseTimeout
	}
	return &Link{
		adapter: adapter,
		opts:    opts,
		state:   StateIdle,
		subs:    make(map[int]subscriber),
	}
}

// Subscribe registers callbacks for state changes and inbound notification
// payloads. Either callback may be nil. Callbacks run on the link's
// goroutines and must not block. The returned func removes the registration.
func (l *Link) Subscribe(onState func(State), onFrame func([]byte)) func() {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = subscriber{onState: onState, onFrame: onFrame}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

// State returns the current lifecycle state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// MaxWriteSize returns the payload size reported by the peripheral for the
// current connection, or 0 when not connected.
func (l *Link) MaxWriteSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxWrite
}

// Connect starts scanning and keeps the link up until ctx is cancelled or
// Close is called. It returns immediately; calling it again while running
// is a no-op.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
	return nil
}

// Write sends one frame with an acknowledged write. It returns
// ErrNotConnected without side effects unless the link is connected.
// Failed writes are not retried.
func (l *Link) Write(data []byte) error {
	l.mu.Lock()
	if l.state != StateConnected || l.char == nil {
		l.mu.Unlock()
		return ErrNotConnected
	}
	char := l.char
	maxWrite := l.maxWrite
	l.mu.Unlock()

	if maxWrite > 0 && len(data) > maxWrite {
		slog.Warn("[BLE] payload exceeds max write size", "len", len(data), "max", maxWrite)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if err := char.Write(data); err != nil {
		return fmt.Errorf("ble: write: %w", err)
	}
	return nil
}

// Close stops the connection loop and disconnects. It does not wait for an
// outstanding write.
func (l *Link) Close() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-time.After(l.opts.CloseTimeout):
		slog.Warn("[BLE] connection loop did not stop in time")
	}
	return nil
}

// run is the connection loop. Each iteration is one scan/connect session;
// failures and drops are followed by an exponential backoff.
func (l *Link) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.setState(StateIdle)

	for attempt := 0; ; {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			attempt = 0
		}
		slog.Warn("[BLE] link down, restarting scan", "error", err)
		l.setState(StateDisconnected)

		delay := backoffDelay(attempt, l.opts.BackoffBase, l.opts.ReconnectMax)
		attempt++
		slog.Info("[BLE] reconnect backoff", "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session runs one scan -> connect -> discover -> serve cycle. It reports
// whether the link reached the connected state.
func (l *Link) session(ctx context.Context) (bool, error) {
	if err := l.enable(); err != nil {
		return false, err
	}

	l.setState(StateScanning)
	dev, err := l.scanFirst(ctx)
	if err != nil {
		return false, err
	}
	slog.Info("[BLE] found controller", "name", dev.Name, "address", dev.Address, "rssi", dev.RSSI)

	l.setState(StateConnecting)
	connectCtx, cancel := context.WithTimeout(ctx, l.opts.ConnectTimeout)
	conn, err := l.adapter.Connect(connectCtx, dev.Address)
	cancel()
	if err != nil {
		return false, err
	}

	// Register before discovery so a drop during discovery is not missed.
	dropped := make(chan struct{})
	var dropOnce sync.Once
	conn.OnDisconnect(func() {
		dropOnce.Do(func() { close(dropped) })
	})

	char, err := conn.DiscoverCharacteristic(l.opts.ServiceUUID, l.opts.CharUUID)
	if err != nil {
		_ = conn.Disconnect()
		return false, fmt.Errorf("ble: discover characteristic: %w", err)
	}
	if err := char.Subscribe(func(data []byte) { l.deliver(char, data) }); err != nil {
		_ = conn.Disconnect()
		return false, fmt.Errorf("ble: subscribe: %w", err)
	}

	maxWrite, err := char.MaxWriteSize()
	if err != nil {
		slog.Debug("[BLE] max write size unavailable", "error", err)
		maxWrite = 0
	}

	select {
	case <-dropped:
		return false, ErrLinkLost
	default:
	}

	l.mu.Lock()
	l.conn = conn
	l.char = char
	l.maxWrite = maxWrite
	l.mu.Unlock()
	l.setState(StateConnected)
	slog.Info("[BLE] connected", "address", dev.Address, "max_write", maxWrite)

	select {
	case <-dropped:
	case <-ctx.Done():
		_ = conn.Disconnect()
	}

	l.mu.Lock()
	l.conn = nil
	l.char = nil
	l.maxWrite = 0
	l.mu.Unlock()
	return true, ErrLinkLost
}

func (l *Link) enable() error {
	l.mu.Lock()
	enabled := l.enabled
	l.mu.Unlock()
	if enabled {
		return nil
	}
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}
	l.mu.Lock()
	l.enabled = true
	l.mu.Unlock()
	return nil
}

// scanFirst scans until the first advertiser of the service shows up.
func (l *Link) scanFirst(ctx context.Context) (Device, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan Device, 1)
	err := l.adapter.Scan(scanCtx, l.opts.ServiceUUID, func(d Device) {
		select {
		case found <- d:
			cancel()
		default:
		}
	})

	select {
	case d := <-found:
		return d, nil
	default:
	}
	if ctx.Err() != nil {
		return Device{}, ctx.Err()
	}
	if err != nil {
		return Device{}, err
	}
	return Device{}, errors.New("ble: scan ended without a match")
}

// deliver forwards a notification unless it came from a characteristic of
// an earlier connection.
func (l *Link) deliver(from Characteristic, data []byte) {
	l.mu.Lock()
	if l.char != from {
		l.mu.Unlock()
		return
	}
	subs := l.snapshotSubs()
	l.mu.Unlock()

	for _, s := range subs {
		if s.onFrame != nil {
			s.onFrame(data)
		}
	}
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	if l.state == s {
		l.mu.Unlock()
		return
	}
	l.state = s
	subs := l.snapshotSubs()
	l.mu.Unlock()

	slog.Debug("[BLE] state", "state", s)
	for _, sub := range subs {
		if sub.onState != nil {
			sub.onState(s)
		}
	}
}

// snapshotSubs copies the subscriber set (caller must hold mu).
func (l *Link) snapshotSubs() []subscriber {
	subs := make([]subscriber, 0, len(l.subs))
	for _, s := range l.subs {
		subs = append(subs, s)
	}
	return subs
}

// backoffDelay returns the reconnection delay for attempt n: base doubled
// per attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Beyond 30 doublings any sane base has long passed the cap.
	if attempt > 30 {
		return max
	}
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
