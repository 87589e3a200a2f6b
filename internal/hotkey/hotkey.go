// Package hotkey provides a global hold-to-throttle key using gohook.
// It supports "hold" mode (press to engage, release to let go) and
// "toggle" mode (press to engage, press again to let go).
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType indicates whether the throttle key was engaged or released.
type EventType int

const (
	// EventEngage signals that the hotkey was activated (apply throttle).
	EventEngage EventType = iota
	// EventRelease signals that the hotkey was deactivated (throttle off).
	EventRelease
)

func (t EventType) String() string {
	switch t {
	case EventEngage:
		return "engage"
	case EventRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages a global hotkey and emits engage/release events.
type Listener struct {
	keys []string
	mode string // "hold" or "toggle"
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "t"]).
// mode must be "hold" or "toggle".
func NewListener(keys []string, mode string) *Listener {
	return &Listener{
		keys: keys,
		mode: mode,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	switch l.mode {
	case "toggle":
		t := &toggle{}
		hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
			l.emit(t.press())
		})
	default: // "hold"
		hook.Register(hook.KeyDown, l.keys, func(hook.Event) {
			l.emit(EventEngage)
		})
		hook.Register(hook.KeyUp, l.keys, func(hook.Event) {
			l.emit(EventRelease)
		})
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit never blocks the hook goroutine; events are dropped if the
// consumer falls behind.
func (l *Listener) emit(t EventType) {
	select {
	case l.ch <- Event{Type: t}:
	default:
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// toggle flips between engaged and released on each key press.
type toggle struct {
	mu      sync.Mutex
	engaged bool
}

func (t *toggle) press() EventType {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engaged = !t.engaged
	if t.engaged {
		return EventEngage
	}
	return EventRelease
}
