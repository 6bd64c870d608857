package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/msgmenu/internal/config"
	"github.com/jmylchreest/msgmenu/internal/dbus"
	"github.com/jmylchreest/msgmenu/internal/registry"
)

// Options configures a Daemon beyond the config file.
type Options struct {
	// ConfigPath is watched for changes when WatchConfig is set.
	ConfigPath  string
	WatchConfig bool
	// LevelVar, when set, receives the configured log level.
	LevelVar *slog.LevelVar
	// LogLevel, when set, wins over broker.log_level, also on reload.
	LogLevel string
	Logger   *slog.Logger
}

// Daemon runs the messaging menu broker.
type Daemon struct {
	cfgMu  sync.Mutex
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	registry      *registry.Registry
	server        *dbus.BrokerServer
	peers         *dbus.NameWatcher
	configWatcher *ConfigWatcher
	conn          *godbus.Conn

	dropOnVanish atomic.Bool

	mu      sync.Mutex
	running bool
}

// New creates a Daemon from cfg. Nothing touches the bus until Start.
func New(cfg *config.Config, opts Options) *Daemon {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := registry.New(cfg.Broker.InitialStatus)
	server := dbus.NewBrokerServer(reg, logger)
	server.SetBusName(cfg.Bus.ServiceName)
	server.SetReplace(cfg.Broker.Replace)

	d := &Daemon{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		registry: reg,
		server:   server,
	}
	d.dropOnVanish.Store(cfg.Broker.DropOnVanish)
	if opts.LevelVar != nil {
		opts.LevelVar.Set(d.logLevel(cfg))
	}
	return d
}

// config returns the configuration last loaded.
func (d *Daemon) config() *config.Config {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.cfg
}

// logLevel returns the level to run at under cfg.
func (d *Daemon) logLevel(cfg *config.Config) slog.Level {
	if d.opts.LogLevel != "" {
		if level, err := config.ParseLogLevel(d.opts.LogLevel); err == nil {
			return level
		}
	}
	return cfg.Broker.SlogLevel()
}

// Registry returns the daemon's registration registry.
func (d *Daemon) Registry() *registry.Registry {
	return d.registry
}

// Start connects to the bus, claims the broker name and begins watching
// peers and the config file.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon already running")
	}

	cfg := d.config()
	conn, err := dbus.Connect(cfg.Bus.Address)
	if err != nil {
		return err
	}

	if err := d.server.Start(conn); err != nil {
		_ = conn.Close()
		return err
	}

	d.peers = dbus.NewNameWatcher(conn, "", d.peerChanged, d.logger)
	if err := d.peers.Start(); err != nil {
		_ = d.server.Stop()
		_ = conn.Close()
		return fmt.Errorf("failed to watch peers: %w", err)
	}

	if d.opts.WatchConfig {
		d.configWatcher = NewConfigWatcher(d.opts.ConfigPath, d.logger)
		d.configWatcher.SetReloadCallback(d.applyConfig)
		d.configWatcher.SetErrorCallback(func(err error) {
			d.logger.Error("keeping previous configuration", "error", err)
		})
		if err := d.configWatcher.Start(cfg); err != nil {
			d.logger.Warn("config hot reload disabled", "error", err)
			d.configWatcher = nil
		}
	}

	d.conn = conn
	d.running = true
	d.logger.Info("msgmenud started",
		"service", cfg.Bus.ServiceName,
		"status", d.registry.GlobalStatus(),
		"drop_on_vanish", d.dropOnVanish.Load(),
	)
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return d.Stop()
}

// Stop releases the broker name and closes the connection.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	if d.configWatcher != nil {
		d.configWatcher.Stop()
	}
	d.peers.Stop()
	if err := d.server.Stop(); err != nil {
		d.logger.Warn("failed to stop broker server", "error", err)
	}
	_ = d.registry.Close()

	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("failed to close bus connection: %w", err)
	}
	d.logger.Info("msgmenud stopped")
	return nil
}

// peerChanged drops the registrations of connections that left the bus.
func (d *Daemon) peerChanged(change dbus.NameOwnerChange) {
	if !change.IsUnique() || !change.Vanished() {
		return
	}
	if !d.dropOnVanish.Load() {
		return
	}
	for _, app := range d.registry.DropOwner(change.Name) {
		d.logger.Info("dropped application of vanished peer", "app_id", app.ID, "owner", change.Name)
	}
}

// applyConfig takes over the settings that can change at runtime and
// remembers cfg as the current configuration.
func (d *Daemon) applyConfig(cfg *config.Config) {
	level := d.logLevel(cfg)
	if d.opts.LevelVar != nil {
		d.opts.LevelVar.Set(level)
	}
	d.dropOnVanish.Store(cfg.Broker.DropOnVanish)

	d.cfgMu.Lock()
	prev := d.cfg
	d.cfg = cfg
	d.cfgMu.Unlock()

	if cfg.Bus != prev.Bus || cfg.Broker.Replace != prev.Broker.Replace ||
		cfg.Broker.InitialStatus != prev.Broker.InitialStatus {
		d.logger.Warn("bus and startup settings changed, restart msgmenud to apply them")
	}
	d.logger.Info("applied configuration",
		"log_level", level,
		"drop_on_vanish", cfg.Broker.DropOnVanish,
	)
}
