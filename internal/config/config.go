// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// Default configuration values.
const (
	DefaultServiceName = "com.canonical.indicator.messages"
	DefaultQueueSize   = 64
	DefaultCallTimeout = 5 * time.Second
	DefaultLogLevel    = "info"
)

// Config represents the msgmenu configuration shared by msgmenud and msgmenu.
type Config struct {
	Bus    BusConfig    `toml:"bus"`
	Client ClientConfig `toml:"client"`
	Broker BrokerConfig `toml:"broker"`
}

// BusConfig selects the bus and the broker's well-known name.
type BusConfig struct {
	Address     string `toml:"address"`      // Empty = session bus
	ServiceName string `toml:"service_name"` // Well-known broker name
}

// ClientConfig holds client library defaults.
type ClientConfig struct {
	QueueSize    int      `toml:"queue_size"`    // Outbound call queue depth
	CallTimeout  Duration `toml:"call_timeout"`  // Per-call delivery timeout
	ReportErrors bool     `toml:"report_errors"` // Surface broker error replies
}

// BrokerConfig holds msgmenud settings.
type BrokerConfig struct {
	Replace       bool         `toml:"replace"`        // Take over an existing owner of the name
	DropOnVanish  bool         `toml:"drop_on_vanish"` // Remove apps whose peer left the bus
	InitialStatus model.Status `toml:"initial_status"` // Global status at startup
	LogLevel      string       `toml:"log_level"`      // debug, info, warn, error
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			Address:     "",
			ServiceName: DefaultServiceName,
		},
		Client: ClientConfig{
			QueueSize:    DefaultQueueSize,
			CallTimeout:  Duration(DefaultCallTimeout),
			ReportErrors: false,
		},
		Broker: BrokerConfig{
			Replace:       false,
			DropOnVanish:  true,
			InitialStatus: model.StatusAvailable,
			LogLevel:      DefaultLogLevel,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "msgmenu", "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Bus.ServiceName == "" {
		return errors.New("bus.service_name cannot be empty")
	}
	if c.Client.QueueSize < 1 || c.Client.QueueSize > 4096 {
		return fmt.Errorf("client.queue_size must be between 1 and 4096, got %d", c.Client.QueueSize)
	}
	if c.Client.CallTimeout.Duration() <= 0 {
		return fmt.Errorf("client.call_timeout must be positive, got %s", c.Client.CallTimeout.Duration())
	}
	if !c.Broker.InitialStatus.Valid() {
		return fmt.Errorf("broker.initial_status: %w", model.ErrInvalidStatus)
	}
	if _, err := ParseLogLevel(c.Broker.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel converts a config log level into a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}

// SlogLevel returns the configured broker log level, falling back to info.
func (c *BrokerConfig) SlogLevel() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}
