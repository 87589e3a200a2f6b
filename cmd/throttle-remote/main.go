// Command throttle-remote drives a motorcycle throttle controller over
// Bluetooth Low Energy from a handheld WebSocket UI or a desktop hotkey.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

var rootCmd = &cobra.Command{
	Use:   "throttle-remote",
	Short: "Remote control for a BLE throttle controller",
	Long: `Remote control link for a motorcycle's onboard throttle controller.

- Connect to the controller over Bluetooth Low Energy and reconnect automatically
- Serve a handheld UI over WebSocket (set max, drag current, release)
- Hold a global hotkey to apply throttle from the desktop
- Scan for controllers and send one-off frames for bench testing`,
	Version:           formatVersion(version),
	PersistentPreRunE: setup,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// main() prints errors itself
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(hotkeyTestCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to config file (default: ~/.config/throttle-remote/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "throttle-remote %s (commit %s, built %s)\n", formatVersion(version), commit, date)
		return nil
	},
}
