// Package control is the throttle control link: it owns the connection
// state, rate-limits throttle intents from the UI into outbound frames and
// mirrors the throttle state reported by the controller.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/throttle-remote/internal/ble"
	"github.com/chaz8081/throttle-remote/internal/ble/protocol"
)

// Transport is the link the core drives. *ble.Link implements it.
type Transport interface {
	// Connect starts (or keeps) the connection loop; it must not block.
	Connect(ctx context.Context) error
	// Write sends one encoded frame.
	Write(data []byte) error
	// Subscribe registers state and notification callbacks.
	Subscribe(onState func(ble.State), onFrame func([]byte)) (unsubscribe func())
}

var _ Transport = (*ble.Link)(nil)

// Options configures the core.
type Options struct {
	Window     time.Duration // debounce window per intent stream
	InitialMax int           // desired max throttle before the UI sets one
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Window:     100 * time.Millisecond,
		InitialMax: 50,
	}
}

// Core is the control link. All state is owned by a single event loop
// goroutine; public methods only enqueue work and never block.
type Core struct {
	transport Transport
	observer  Observer
	opts      Options

	mb   *mailbox
	stop chan struct{}
	done chan struct{}

	lifeMu  sync.Mutex
	started bool
	closed  bool

	// Owned by the event loop.
	state          ConnectionState
	desiredMax     int
	desiredCurrent int
	editing        bool
	observed       Observed
	stats          Stats
	maxStream      *debouncer
	currentStream  *debouncer
	unsubscribe    func()

	snapMu sync.RWMutex
	snap   Snapshot
}

// New creates a core over transport. observer may be nil.
func New(transport Transport, observer Observer, opts Options) *Core {
	if opts.Window <= 0 {
		opts.Window = DefaultOptions().Window
	}
	opts.InitialMax = protocol.Clamp(opts.InitialMax)
	if observer == nil {
		observer = nopObserver{}
	}

	c := &Core{
		transport:  transport,
		observer:   observer,
		opts:       opts,
		mb:         newMailbox(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      Disconnected,
		desiredMax: opts.InitialMax,
	}
	c.maxStream = newDebouncer(opts.Window, c.mb.push, c.emitMax)
	c.currentStream = newDebouncer(opts.Window, c.mb.push, c.emitCurrent)
	c.publish()
	return c
}

// AddObserver registers another observer. It must be called before Start.
func (c *Core) AddObserver(o Observer) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.started || c.closed {
		return errors.New("control: observers are fixed once started")
	}
	if _, ok := c.observer.(nopObserver); ok {
		c.observer = o
	} else {
		c.observer = Observers{c.observer, o}
	}
	return nil
}

// Start subscribes to the transport, starts the event loop and asks the
// transport to connect. The loop runs until ctx is done or Close is called.
func (c *Core) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		return errors.New("control: core closed")
	}
	if c.started {
		c.lifeMu.Unlock()
		return nil
	}
	c.started = true
	c.unsubscribe = c.transport.Subscribe(
		func(s ble.State) { c.mb.push(func() { c.handleState(s) }) },
		func(b []byte) { c.mb.push(func() { c.handleFrame(b) }) },
	)
	go c.loop(ctx)
	c.lifeMu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("control: connect: %w", err)
	}
	return nil
}

// SubmitDesiredMax records a new max throttle intent (0-100).
func (c *Core) SubmitDesiredMax(v int) {
	c.mb.push(func() {
		c.desiredMax = protocol.Clamp(v)
		c.maxStream.submit(c.desiredMax)
		c.publish()
	})
}

// SubmitDesiredCurrent records a new instantaneous throttle intent (0-100,
// or protocol.NoThrottle) and marks the user as editing.
func (c *Core) SubmitDesiredCurrent(v int) {
	c.mb.push(func() {
		if v != protocol.NoThrottle {
			v = protocol.Clamp(v)
		}
		c.desiredCurrent = v
		c.editing = true
		c.currentStream.submit(v)
		c.publish()
	})
}

// NotifyEditingEnded is the release path: the user let go of the throttle
// control. It bypasses the debounce window and commands the controller off.
func (c *Core) NotifyEditingEnded() {
	c.mb.push(c.release)
}

// Snapshot returns a copy of the current state. Safe for concurrent use.
func (c *Core) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Close cancels pending debounce timers, unsubscribes from the transport
// and stops the event loop. If throttle is still applied, the loop sends
// one final off frame on its way out; wait on Done before closing the
// transport. Close itself does not wait.
func (c *Core) Close() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)
	if !c.started {
		close(c.done)
	}
	return nil
}

// Done is closed once the event loop has exited.
func (c *Core) Done() <-chan struct{} {
	return c.done
}

func (c *Core) loop(ctx context.Context) {
	defer close(c.done)
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-c.mb.signal:
			for _, fn := range c.mb.drain() {
				fn()
			}
		}
	}
}

// teardown runs whatever was queued before the loop stopped, so a release
// posted during shutdown still reaches the controller. If the user is
// still holding throttle, it commands the controller off one last time:
// the firmware keeps the last override until told otherwise.
func (c *Core) teardown() {
	for _, fn := range c.mb.drain() {
		fn()
	}
	if c.editing {
		slog.Info("[CTRL] stopping while throttle applied, sending off")
		c.release()
	}
	c.maxStream.cancel()
	c.currentStream.cancel()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	slog.Debug("[CTRL] stopped")
}

func (c *Core) handleState(s ble.State) {
	next := fromLinkState(s)
	if next == c.state {
		return
	}
	prev := c.state
	c.state = next

	// Intents only ever reach the controller from within the Connected
	// epoch they were made in; nothing carries across a state change.
	c.maxStream.cancel()
	c.currentStream.cancel()

	switch {
	case prev == Connected:
		slog.Warn("[CTRL] link lost, pending throttle discarded", "error", ErrConnectionDropped, "state", next)
	case next == Disconnected && s == ble.StateDisconnected:
		slog.Info("[CTRL] link unavailable, transport retrying", "error", ErrTransportUnavailable)
	default:
		slog.Info("[CTRL] connection state", "state", next)
	}

	c.publish()
	c.observer.ConnectionChanged(next)
}

func (c *Core) handleFrame(data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		c.stats.FramesDropped++
		c.publish()
		slog.Debug("[CTRL] discarding malformed frame", "error", err)
		return
	}
	c.stats.FramesReceived++
	c.observed = Observed{InboundMax: f.Max, InboundCurrent: f.Current}
	c.publish()
	c.observer.ThrottleObserved(c.observed)
}

func (c *Core) emitMax(v int) {
	c.send(protocol.NewFrame(v, protocol.WireCurrent(c.desiredCurrent)))
}

func (c *Core) emitCurrent(v int) {
	c.send(protocol.NewFrame(c.desiredMax, protocol.WireCurrent(v)))
}

func (c *Core) release() {
	c.currentStream.cancel()
	c.editing = false
	c.desiredCurrent = 0
	c.observed.InboundCurrent = 0
	c.publish()
	c.observer.CurrentReleased()

	c.send(protocol.NewFrame(c.desiredMax, protocol.NoThrottle))
}

// send writes one frame. Runs on the event loop, so writes never overlap.
func (c *Core) send(f protocol.Frame) {
	if c.state != Connected {
		slog.Debug("[CTRL] not connected, frame not sent", "frame", f)
		return
	}

	err := c.transport.Write(protocol.Encode(f))
	switch {
	case err == nil:
		c.stats.FramesSent++
		slog.Debug("[CTRL] sent", "frame", f)
	case errors.Is(err, ble.ErrNotConnected):
		slog.Debug("[CTRL] transport not ready, frame not sent", "frame", f)
	default:
		c.stats.WritesRejected++
		slog.Warn("[CTRL] write failed", "frame", f, "error", fmt.Errorf("%w: %v", ErrWriteRejected, err))
	}
	c.publish()
}

// publish refreshes the snapshot read by Snapshot.
func (c *Core) publish() {
	c.snapMu.Lock()
	c.snap = Snapshot{
		State:          c.state,
		Observed:       c.observed,
		DesiredMax:     c.desiredMax,
		DesiredCurrent: c.desiredCurrent,
		Editing:        c.editing,
		Stats:          c.stats,
	}
	c.snapMu.Unlock()
}
