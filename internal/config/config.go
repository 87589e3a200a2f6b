package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Throttle values are never
// stored here; they live only for the duration of a session.
type Config struct {
	Link     LinkConfig    `yaml:"link"`
	Control  ControlConfig `yaml:"control"`
	Remote   RemoteConfig  `yaml:"remote"`
	Hotkey   HotkeyConfig  `yaml:"hotkey"`
	LogLevel string        `yaml:"log_level" default:"info"`
}

// LinkConfig holds BLE transport settings.
type LinkConfig struct {
	Backend        string        `yaml:"backend"` // "tinygo" or "goble", see DefaultBackend
	ServiceUUID    string        `yaml:"service_uuid" default:"0000ffe0-0000-1000-8000-00805f9b34fb"`
	CharUUID       string        `yaml:"characteristic_uuid" default:"0000ffe1-0000-1000-8000-00805f9b34fb"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`
	ReconnectMax   time.Duration `yaml:"reconnect_max" default:"30s"`
}

// ControlConfig holds the outbound command pipeline settings.
type ControlConfig struct {
	Debounce   time.Duration `yaml:"debounce" default:"100ms"`
	InitialMax int           `yaml:"initial_max" default:"50"`
}

// RemoteConfig holds the WebSocket UI bridge settings.
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Listen  string `yaml:"listen" default:"127.0.0.1:8080"`
}

// HotkeyConfig holds the hold-to-throttle key settings.
type HotkeyConfig struct {
	Enabled  bool     `yaml:"enabled" default:"false"`
	Keys     []string `yaml:"keys"`
	Mode     string   `yaml:"mode" default:"hold"` // "hold" or "toggle"
	Throttle int      `yaml:"throttle" default:"30"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "throttle-remote")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultBackend returns the BLE backend that gives acknowledged writes on
// this OS. tinygo/bluetooth can only write without response on BlueZ, so
// Linux defaults to go-ble.
func DefaultBackend() string {
	if runtime.GOOS == "linux" {
		return "goble"
	}
	return "tinygo"
}

// Default returns a Config with sensible default values.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	cfg.Link.Backend = DefaultBackend()
	cfg.Hotkey.Keys = []string{"ctrl", "shift", "t"}
	return cfg
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Link.Backend = strings.ToLower(cfg.Link.Backend)
	cfg.Hotkey.Mode = strings.ToLower(cfg.Hotkey.Mode)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Link.Backend {
	case "tinygo", "goble":
	default:
		return fmt.Errorf("link.backend must be \"tinygo\" or \"goble\", got %q", c.Link.Backend)
	}

	if c.Link.ServiceUUID == "" {
		return errors.New("link.service_uuid must not be empty")
	}
	if c.Link.CharUUID == "" {
		return errors.New("link.characteristic_uuid must not be empty")
	}
	if c.Link.ConnectTimeout <= 0 {
		return errors.New("link.connect_timeout must be > 0")
	}
	if c.Link.ReconnectMax <= 0 {
		return errors.New("link.reconnect_max must be > 0")
	}

	if c.Control.Debounce <= 0 {
		return errors.New("control.debounce must be > 0")
	}
	if c.Control.InitialMax < 0 || c.Control.InitialMax > 100 {
		return fmt.Errorf("control.initial_max must be 0-100, got %d", c.Control.InitialMax)
	}

	if c.Remote.Enabled {
		if _, _, err := net.SplitHostPort(c.Remote.Listen); err != nil {
			return fmt.Errorf("remote.listen %q: %w", c.Remote.Listen, err)
		}
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.Keys) == 0 {
			return errors.New("hotkey.keys must not be empty")
		}
		switch c.Hotkey.Mode {
		case "hold", "toggle":
		default:
			return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
		}
		if c.Hotkey.Throttle < 1 || c.Hotkey.Throttle > 100 {
			return fmt.Errorf("hotkey.throttle must be 1-100, got %d", c.Hotkey.Throttle)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level onto slog. Unknown values fall
// back to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# throttle-remote configuration
# Generated with default values. Edit as needed.
#
# link.backend: tinygo or goble (goble is the default on Linux,
#               where tinygo cannot acknowledge writes)
# hotkey.mode:  hold (throttle while keys are held) or toggle
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the written path, or "" if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
