package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/throttle-remote/internal/hotkey"
)

var hotkeyTestMode string

var hotkeyTestCmd = &cobra.Command{
	Use:   "hotkey-test",
	Short: "Print hotkey events without connecting",
	Long: `Listen for the configured throttle hotkey and print engage/release
events. Nothing is sent to the controller. Press Ctrl+C to exit.`,
	Args: cobra.NoArgs,
	RunE: runHotkeyTest,
}

func init() {
	hotkeyTestCmd.Flags().StringVarP(&hotkeyTestMode, "mode", "m", "", "hotkey mode: hold or toggle (default from config)")
}

func runHotkeyTest(cmd *cobra.Command, args []string) error {
	mode := cfg.Hotkey.Mode
	if hotkeyTestMode != "" {
		mode = hotkeyTestMode
	}
	if mode != "hold" && mode != "toggle" {
		return fmt.Errorf("invalid mode %q: must be hold or toggle", mode)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listening for %s in %q mode...\n", strings.Join(cfg.Hotkey.Keys, "+"), mode)
	fmt.Fprintln(out, "Press Ctrl+C to exit.")

	listener := hotkey.NewListener(cfg.Hotkey.Keys, mode)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		fmt.Fprintln(out, "\nShutting down...")
		listener.Stop()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range listener.Events() {
			switch ev.Type {
			case hotkey.EventEngage:
				fmt.Fprintf(out, ">>> ENGAGE  (throttle %d%%)\n", cfg.Hotkey.Throttle)
			case hotkey.EventRelease:
				fmt.Fprintln(out, "<<< RELEASE (off)")
			}
		}
	}()

	// Blocks until stopped
	listener.Start()
	<-done
	return nil
}
