// Package main provides the msgmenu command line client.
package main

import (
	"fmt"
	"log/slog"
	"os"

	godbus "github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/msgmenu/internal/config"
	"github.com/jmylchreest/msgmenu/internal/dbus"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		address    string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "msgmenu",
	Short: "Messaging menu client",
	Long: `msgmenu talks to the messaging menu broker (msgmenud) on the session bus.

It can register an application with message sources, change the global
presence status, list registered applications and watch them live.

Running msgmenu without a subcommand launches the live monitor.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalOpts.address != "" {
			cfg.Bus.Address = globalOpts.address
		}
		return nil
	},
	// Default to the monitor when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMonitor(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/msgmenu/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.address, "address", "",
		"D-Bus address to connect to (default: session bus)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// connect opens the configured bus.
func connect() (*godbus.Conn, error) {
	conn, err := dbus.Connect(cfg.Bus.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to D-Bus: %w", err)
	}
	return conn, nil
}

// newProxy returns a proxy that reports broker error replies, so one-shot
// commands can surface failures.
func newProxy(conn *godbus.Conn) *dbus.BrokerProxy {
	return dbus.NewBrokerProxy(conn,
		dbus.WithServiceName(cfg.Bus.ServiceName),
		dbus.WithReportErrors(true),
		dbus.WithProxyLogger(logger),
	)
}
