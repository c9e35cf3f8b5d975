// Package config handles TOML-based configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a Go duration string ("500ms", "1h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all application configuration.
type Config struct {
	Player            string   `toml:"player"`
	Store             string   `toml:"store"`
	AutoPlayDelay     Duration `toml:"autoplay_delay"`
	SyncInterval      Duration `toml:"sync_interval"`
	ProgressTTL       Duration `toml:"progress_ttl"`
	SimulatedDuration Duration `toml:"simulated_duration"`
	Width             int      `toml:"width"`
	ViewportRows      int      `toml:"viewport_rows"`
	Debug             bool     `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Player:            "mpv",
		Store:             "file",
		AutoPlayDelay:     Duration{500 * time.Millisecond},
		SyncInterval:      Duration{10 * time.Second},
		ProgressTTL:       Duration{time.Hour},
		SimulatedDuration: Duration{3 * time.Minute},
		Width:             80,
		ViewportRows:      12,
		Debug:             false,
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vigil"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vigil"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults.
// If the config file doesn't exist, defaults are returned.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	validPlayers := map[string]bool{"mpv": true, "simulated": true}
	if !validPlayers[strings.ToLower(c.Player)] {
		return fmt.Errorf("unsupported player %q (valid: mpv, simulated)", c.Player)
	}

	validStores := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validStores[strings.ToLower(c.Store)] {
		return fmt.Errorf("unsupported store %q (valid: file, sqlite, memory)", c.Store)
	}

	if c.AutoPlayDelay.Duration < 0 {
		return fmt.Errorf("autoplay_delay cannot be negative")
	}
	if c.SyncInterval.Duration <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	if c.ProgressTTL.Duration <= 0 {
		return fmt.Errorf("progress_ttl must be positive")
	}
	if c.SimulatedDuration.Duration <= 0 {
		return fmt.Errorf("simulated_duration must be positive")
	}
	if c.Width < 20 {
		return fmt.Errorf("width %d is too narrow (minimum 20)", c.Width)
	}
	if c.ViewportRows < 1 {
		return fmt.Errorf("viewport_rows must be at least 1")
	}

	return nil
}

// DataPath returns the path of a file in vigil's data directory.
func DataPath(name string) (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "vigil", name), nil
}
