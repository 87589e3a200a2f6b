package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chaz8081/throttle-remote/internal/ble"
)

var scanDuration time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for throttle controllers",
	Long: `Scan for BLE peripherals advertising the throttle controller service
and list them by signal strength. The run command connects to the first
controller it sees, so use this to check what is in range.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 5*time.Second, "Scan duration")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanDuration <= 0 {
		return fmt.Errorf("invalid duration %s: must be > 0", scanDuration)
	}

	adapter, err := newAdapter(cfg.Link.Backend)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Scanning for %s ...\n", scanDuration)
	devices, err := ble.ScanForDevices(adapter, cfg.Link.ServiceUUID, scanDuration)
	if err != nil {
		return err
	}

	printDevices(cmd.OutOrStdout(), devices)
	return nil
}

func printDevices(w io.Writer, devices []ble.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No throttle controllers found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI")
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, d.Address, rssiColor(d.RSSI).Sprintf("%d dBm", d.RSSI))
	}
	tw.Flush()
}

func rssiColor(rssi int) *color.Color {
	switch {
	case rssi >= -60:
		return color.New(color.FgGreen)
	case rssi >= -80:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
