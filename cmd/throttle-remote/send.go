package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/throttle-remote/internal/ble"
	"github.com/chaz8081/throttle-remote/internal/ble/protocol"
)

var (
	sendTimeout time.Duration
	sendWait    time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <max> <current>",
	Short: "Send one throttle frame and exit",
	Long: `Connect to the controller, send a single "<max>,<current>" frame and exit.

max is 0-100. current is 0-100 or "off"; 0 is sent as off (-1), the same
way the interactive UIs do. With --wait, the first frame reported back by
the controller is printed before exiting.`,
	Example: `  throttle-remote send 60 25
  throttle-remote send 60 off --wait 2s`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVarP(&sendTimeout, "timeout", "t", 15*time.Second, "How long to wait for the controller to connect")
	sendCmd.Flags().DurationVarP(&sendWait, "wait", "w", 0, "Wait this long for a frame from the controller after sending")
}

// parseSendArgs validates <max> <current> and returns the frame to send.
func parseSendArgs(args []string) (protocol.Frame, error) {
	max, err := strconv.Atoi(args[0])
	if err != nil || max < protocol.MinThrottle || max > protocol.MaxThrottle {
		return protocol.Frame{}, fmt.Errorf("invalid max %q: must be an integer 0-100", args[0])
	}

	current := protocol.NoThrottle
	if !strings.EqualFold(args[1], "off") {
		current, err = strconv.Atoi(args[1])
		if err != nil || (current != protocol.NoThrottle && (current < protocol.MinThrottle || current > protocol.MaxThrottle)) {
			return protocol.Frame{}, fmt.Errorf("invalid current %q: must be an integer 0-100 or \"off\"", args[1])
		}
	}

	return protocol.NewFrame(max, protocol.WireCurrent(current)), nil
}

func runSend(cmd *cobra.Command, args []string) error {
	frame, err := parseSendArgs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link, err := newLink(cfg)
	if err != nil {
		return err
	}
	defer link.Close()

	connected := make(chan struct{})
	var once sync.Once
	frames := make(chan []byte, 1)
	unsubscribe := link.Subscribe(
		func(s ble.State) {
			if s == ble.StateConnected {
				once.Do(func() { close(connected) })
			}
		},
		func(data []byte) {
			select {
			case frames <- data:
			default:
			}
		},
	)
	defer unsubscribe()

	if err := link.Connect(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(cmd.ErrOrStderr(), "Connecting...")
	select {
	case <-connected:
	case <-time.After(sendTimeout):
		return fmt.Errorf("no controller connected within %s", sendTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := link.Write(protocol.Encode(frame)); err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %s\n", frame)

	if sendWait <= 0 {
		return nil
	}

	select {
	case data := <-frames:
		reply, err := protocol.Decode(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Controller reported %s\n", reply)
	case <-time.After(sendWait):
		fmt.Fprintln(out, "No frame from the controller")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
