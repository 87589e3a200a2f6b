package control

import "time"

// debouncer collapses values submitted within one window into the latest
// one and emits it once when the window closes (trailing, latest wins).
// The window is armed by the first value and is not extended by later
// ones, so a continuous stream still emits once per window.
//
// All methods except the timer callback run on the core's event loop;
// the timer only posts fire back onto that loop.
type debouncer struct {
	window time.Duration
	post   func(func())
	emit   func(int)

	timer   *time.Timer
	gen     uint64
	pending bool
	value   int
}

func newDebouncer(window time.Duration, post func(func()), emit func(int)) *debouncer {
	return &debouncer{window: window, post: post, emit: emit}
}

func (d *debouncer) submit(v int) {
	d.value = v
	d.pending = true
	if d.timer != nil {
		return
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() {
		d.post(func() { d.fire(gen) })
	})
}

func (d *debouncer) fire(gen uint64) {
	// A cancel between the timer firing and this running bumps gen.
	if gen != d.gen {
		return
	}
	d.timer = nil
	if !d.pending {
		return
	}
	d.pending = false
	d.emit(d.value)
}

// cancel drops the pending value and disarms the timer.
func (d *debouncer) cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.pending = false
}
