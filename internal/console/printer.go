// Package console prints control link status lines to a terminal.
package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/chaz8081/throttle-remote/internal/control"
)

// Printer writes one colored line per status update. It implements
// control.Observer.
type Printer struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time

	ok   *color.Color
	busy *color.Color
	bad  *color.Color
	info *color.Color
}

var _ control.Observer = (*Printer)(nil)

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:    w,
		now:  time.Now,
		ok:   color.New(color.FgGreen, color.Bold),
		busy: color.New(color.FgYellow),
		bad:  color.New(color.FgRed),
		info: color.New(color.FgCyan),
	}
}

func (p *Printer) ConnectionChanged(state control.ConnectionState) {
	c := p.bad
	switch state {
	case control.Connected:
		c = p.ok
	case control.Scanning, control.Connecting:
		c = p.busy
	}
	p.printf(c, "link %s", state)
}

func (p *Printer) ThrottleObserved(observed control.Observed) {
	p.printf(p.info, "controller max=%s current=%s", formatThrottle(observed.InboundMax), formatThrottle(observed.InboundCurrent))
}

func (p *Printer) CurrentReleased() {
	p.printf(p.busy, "throttle released")
}

func (p *Printer) printf(c *color.Color, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", p.now().Format("15:04:05.000"), c.Sprintf(format, args...))
}

func formatThrottle(v float64) string {
	if v < 0 {
		return "off"
	}
	return fmt.Sprintf("%.0f%%", v)
}
