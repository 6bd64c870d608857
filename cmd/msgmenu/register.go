package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/msgmenu/internal/dbus"
	"github.com/jmylchreest/msgmenu/internal/model"
)

var registerOpts struct {
	status           string
	sources          []string
	counts           []string
	unregisterOnExit bool
}

var registerCmd = &cobra.Command{
	Use:   "register <desktop-id>",
	Short: "Register an application and keep it listed until interrupted",
	Long: `Register an application with the messaging menu broker and keep the
registration alive until interrupted.

The application stays listed while msgmenu runs. On exit msgmenu tells the
broker the application stopped running; with --unregister-on-exit it also
asks to be removed from the menu first.

If the broker restarts while msgmenu is running, the registration, status
and sources are replayed to the new broker.

Examples:
  # Register and report busy
  msgmenu register empathy.desktop --status busy

  # Register with two sources, one with a message count
  msgmenu register thunderbird.desktop --source inbox=Inbox --count inbox=3 \
      --source news=Newsletters`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().StringVar(&registerOpts.status, "status", "",
		"Report this status after registering (available, away, busy, invisible, offline)")
	registerCmd.Flags().StringArrayVar(&registerOpts.sources, "source", nil,
		"Add a source as id=label (repeatable)")
	registerCmd.Flags().StringArrayVar(&registerOpts.counts, "count", nil,
		"Set a source count as id=n (repeatable)")
	registerCmd.Flags().BoolVar(&registerOpts.unregisterOnExit, "unregister-on-exit", false,
		"Unregister from the menu before exiting")
}

func runRegister(cmd *cobra.Command, args []string) error {
	desktopID := args[0]

	var status model.Status
	if registerOpts.status != "" {
		var err error
		status, err = model.ParseStatus(registerOpts.status)
		if err != nil {
			return err
		}
	}

	sources, err := parseSources(registerOpts.sources, registerOpts.counts)
	if err != nil {
		return err
	}

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := dbus.OpenAppSession(conn, desktopID, dbus.SessionOptions{
		ServiceName:  cfg.Bus.ServiceName,
		ReportErrors: cfg.Client.ReportErrors,
		QueueSize:    cfg.Client.QueueSize,
		CallTimeout:  cfg.Client.CallTimeout.Duration(),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open application session: %w", err)
	}

	app := session.App()
	app.SetStatusHandler(func(s model.Status) {
		fmt.Fprintf(os.Stderr, "global status changed to %s\n", s)
	})
	app.SetActivateHandler(func(id string) {
		fmt.Fprintf(os.Stderr, "source %s activated\n", id)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, s := range sources {
		if err := app.AppendSource(s); err != nil {
			_ = session.Close()
			return fmt.Errorf("failed to add source %s: %w", s.ID, err)
		}
	}
	if err := app.Register(ctx); err != nil {
		_ = session.Close()
		return fmt.Errorf("failed to register: %w", err)
	}
	if registerOpts.status != "" {
		if err := app.SetStatus(ctx, status); err != nil {
			_ = session.Close()
			return fmt.Errorf("failed to set status: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "registered %s at %s, press Ctrl+C to stop\n", app.ID(), app.MenuPath())
	<-ctx.Done()

	if registerOpts.unregisterOnExit {
		if err := app.Unregister(context.Background()); err != nil {
			logger.Warn("failed to unregister", "app_id", app.ID(), "error", err)
		}
	}
	return session.Close()
}

// parseSources builds sources from id=label pairs and applies id=n counts.
func parseSources(pairs, counts []string) ([]model.Source, error) {
	list := model.NewSourceList()
	for _, pair := range pairs {
		id, label, ok := strings.Cut(pair, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid source %q: expected id=label", pair)
		}
		if _, err := list.Insert(list.Len(), model.Source{ID: id, Label: label}); err != nil {
			return nil, fmt.Errorf("invalid source %q: %w", pair, err)
		}
	}

	for _, pair := range counts {
		id, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid count %q: expected id=n", pair)
		}
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", pair, err)
		}
		if _, err := list.Update(id, func(s *model.Source) { s.Count = uint32(n) }); err != nil {
			return nil, fmt.Errorf("invalid count %q: %w", pair, err)
		}
	}
	return list.All(), nil
}
