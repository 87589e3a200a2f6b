package main

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"github.com/chaz8081/throttle-remote/internal/ble"
	"github.com/chaz8081/throttle-remote/internal/config"
	"github.com/chaz8081/throttle-remote/internal/control"
)

// newAdapter returns the BLE stack selected by link.backend.
func newAdapter(backend string) (ble.Adapter, error) {
	switch backend {
	case "tinygo":
		if runtime.GOOS == "linux" {
			slog.Warn("[BLE] tinygo backend writes without response on Linux; use goble for acknowledged writes")
		}
		return ble.NewTinyGoAdapter(), nil
	case "goble":
		return ble.NewGoBLEAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown BLE backend %q", backend)
	}
}

func linkOptions(c *config.Config) ble.LinkOptions {
	opts := ble.DefaultLinkOptions()
	opts.ServiceUUID = c.Link.ServiceUUID
	opts.CharUUID = c.Link.CharUUID
	opts.ConnectTimeout = c.Link.ConnectTimeout
	opts.ReconnectMax = c.Link.ReconnectMax
	return opts
}

func controlOptions(c *config.Config) control.Options {
	return control.Options{
		Window:     c.Control.Debounce,
		InitialMax: c.Control.InitialMax,
	}
}

func newLink(c *config.Config) (*ble.Link, error) {
	adapter, err := newAdapter(c.Link.Backend)
	if err != nil {
		return nil, err
	}
	return ble.NewLink(adapter, linkOptions(c)), nil
}

// printBanner displays the startup configuration summary.
func printBanner(w io.Writer, c *config.Config) {
	fmt.Fprintln(w, "=== throttle-remote ===")
	fmt.Fprintf(w, "  Backend:  %s\n", c.Link.Backend)
	fmt.Fprintf(w, "  Service:  %s\n", c.Link.ServiceUUID)
	fmt.Fprintf(w, "  Char:     %s\n", c.Link.CharUUID)
	fmt.Fprintf(w, "  Debounce: %s\n", c.Control.Debounce)
	if c.Remote.Enabled {
		fmt.Fprintf(w, "  Remote:   ws://%s/ws\n", c.Remote.Listen)
	} else {
		fmt.Fprintln(w, "  Remote:   disabled")
	}
	if c.Hotkey.Enabled {
		fmt.Fprintf(w, "  Hotkey:   %s (%s mode, %d%%)\n", strings.Join(c.Hotkey.Keys, "+"), c.Hotkey.Mode, c.Hotkey.Throttle)
	} else {
		fmt.Fprintln(w, "  Hotkey:   disabled")
	}
	fmt.Fprintf(w, "  Log:      %s\n", c.LogLevel)
	fmt.Fprintln(w, "=======================")
}
