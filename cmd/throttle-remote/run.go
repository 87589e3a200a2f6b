package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/throttle-remote/internal/console"
	"github.com/chaz8081/throttle-remote/internal/control"
	"github.com/chaz8081/throttle-remote/internal/hotkey"
	"github.com/chaz8081/throttle-remote/internal/remote"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the controller and serve the remote UIs",
	Long: `Connect to the throttle controller and keep the link up until interrupted.

The WebSocket bridge (remote.enabled) and the hold-to-throttle hotkey
(hotkey.enabled) are started according to the config file. Link and
throttle updates are printed to the terminal unless --quiet is set.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print status lines")
}

// closeWait bounds how long shutdown waits for the final off frame.
const closeWait = 3 * time.Second

func runRun(cmd *cobra.Command, args []string) error {
	// ctx ends the UIs. The core and link outlive it so the controller can
	// still be told to let go of the throttle during shutdown.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner(cmd.OutOrStdout(), cfg)

	link, err := newLink(cfg)
	if err != nil {
		return err
	}

	core := control.New(link, nil, controlOptions(cfg))

	if !runQuiet {
		if err := core.AddObserver(console.NewPrinter(cmd.OutOrStdout())); err != nil {
			return err
		}
	}

	var srv *remote.Server
	if cfg.Remote.Enabled {
		srv = remote.NewServer(core)
		if err := core.AddObserver(srv); err != nil {
			return err
		}
	}

	var ui sync.WaitGroup
	defer func() {
		stop()
		ui.Wait()
		core.Close()
		select {
		case <-core.Done():
		case <-time.After(closeWait):
			slog.Warn("[CTRL] timed out waiting for final frame")
		}
		link.Close()
	}()

	if err := core.Start(context.WithoutCancel(cmd.Context())); err != nil {
		return err
	}

	// Serve failures end the session.
	errc := make(chan error, 1)

	if srv != nil {
		ui.Add(2)
		go func() {
			defer ui.Done()
			srv.Run(ctx)
		}()
		go func() {
			defer ui.Done()
			if err := srv.ListenAndServe(ctx, cfg.Remote.Listen); err != nil {
				errc <- err
			}
		}()
	}

	if cfg.Hotkey.Enabled {
		listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode)
		go listener.Start()

		ui.Add(1)
		go func() {
			defer ui.Done()
			defer listener.Stop()
			hotkey.Drive(ctx, listener.Events(), core, cfg.Hotkey.Throttle)
		}()
		slog.Info("[HOTKEY] ready", "keys", strings.Join(cfg.Hotkey.Keys, "+"), "mode", cfg.Hotkey.Mode)
	}

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
		return nil
	case err := <-errc:
		return err
	}
}
