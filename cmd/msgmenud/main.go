// Package main is the entry point for the msgmenud messaging menu broker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/msgmenu/internal/config"
	"github.com/jmylchreest/msgmenu/internal/daemon"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var opts struct {
	configPath string
	verbose    bool
	replace    bool
	address    string
	noWatch    bool
}

var rootCmd = &cobra.Command{
	Use:   "msgmenud",
	Short: "Messaging menu broker",
	Long: `msgmenud owns com.canonical.indicator.messages on the session bus.

Applications register with it to appear in the messaging menu, report their
presence status and learn about global status changes.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&opts.configPath, "config", "",
		"Path to config file (default: ~/.config/msgmenu/config.toml)")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.Flags().BoolVar(&opts.replace, "replace", false,
		"Take over the service name from a running broker")
	rootCmd.Flags().StringVar(&opts.address, "address", "",
		"D-Bus address to connect to (default: session bus)")
	rootCmd.Flags().BoolVar(&opts.noWatch, "no-watch", false,
		"Do not reload the config file when it changes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "msgmenud:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	var level slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &level,
	}))
	slog.SetDefault(logger)

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.ConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Command line flags win over the config file
	if cmd.Flags().Changed("replace") {
		cfg.Broker.Replace = opts.replace
	}
	if opts.address != "" {
		cfg.Bus.Address = opts.address
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting msgmenud", "version", version, "config", configPath)

	d := daemon.New(cfg, daemon.Options{
		ConfigPath:  configPath,
		WatchConfig: !opts.noWatch && configPath != "",
		LevelVar:    &level,
		LogLevel:    logLevelOverride(),
		Logger:      logger,
	})
	return d.Run(ctx)
}

// logLevelOverride returns the level --verbose forces, kept across config
// reloads.
func logLevelOverride() string {
	if opts.verbose {
		return "debug"
	}
	return ""
}
