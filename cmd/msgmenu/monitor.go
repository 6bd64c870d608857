package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/msgmenu/internal/dbus"
	"github.com/jmylchreest/msgmenu/internal/tui"
)

var monitorOpts struct {
	trace     bool
	interval  time.Duration
	clipboard string
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch registered applications live",
	Long: `Launch the interactive view of registered applications.

The view refreshes whenever the broker announces a registration change or a
new global status, and periodically in between.

With --trace, msgmenu instead prints every messaging menu call and signal on
the bus, one per line, without taking part in the traffic.

Key bindings:
  j/k, ↑/↓    Navigate list
  enter       View application details
  /           Filter applications
  s           Cycle the global status
  c           Copy application id to clipboard
  C           Copy all as JSON
  r           Refresh
  ?           Show help
  q           Quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().BoolVar(&monitorOpts.trace, "trace", false,
		"Print bus traffic instead of launching the interactive view")
	monitorCmd.Flags().DurationVar(&monitorOpts.interval, "interval", tui.DefaultRefreshInterval,
		"Refresh interval when no changes are announced")
	monitorCmd.Flags().StringVar(&monitorOpts.clipboard, "clipboard", "",
		"Clipboard command (default: auto-detect wl-copy, xclip, xsel)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorOpts.trace {
		return runTrace()
	}

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	proxy := newProxy(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 1)
	err = proxy.WatchSignals(ctx, func(member string, _ []interface{}) {
		logger.Debug("broker signal", "member", member)
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		logger.Warn("live updates disabled", "error", err)
	}

	return tui.Run(proxy, tui.Options{
		RefreshInterval:  monitorOpts.interval,
		Changes:          changes,
		ClipboardCommand: monitorOpts.clipboard,
	})
}

// runTrace prints messaging menu traffic until interrupted.
func runTrace() error {
	conn, err := connect()
	if err != nil {
		return err
	}

	monitor := dbus.NewMonitor(logger)
	monitor.SetTrafficHandler(func(ev dbus.TrafficEvent) {
		fmt.Fprintf(os.Stdout, "%s %-6s %s %s %s(%s)\n",
			ev.Time.Format("15:04:05.000"), ev.Kind, ev.Sender, ev.Path, ev.Member,
			strings.Join(ev.Args, ", "))
	})
	if err := monitor.Start(conn); err != nil {
		_ = conn.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return monitor.Stop()
}
