// Package config provides configuration management for sessiond.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultObserverPort is the local observer API port.
	DefaultObserverPort = 4820

	// DefaultBackendURL is the interview backend the daemon talks to.
	DefaultBackendURL = "http://localhost:8000"

	// DefaultMaxConns is the local database connection pool size.
	DefaultMaxConns = 4

	dataDirName  = ".sessiond"
	dbFileName   = "records.db"
	settingsName = "settings.yaml"
)

// Config holds daemon settings. Values come from the settings file, with
// SESSIOND_* environment variables taking precedence.
type Config struct {
	ObserverPort int    `yaml:"observer_port"`
	BackendURL   string `yaml:"backend_url"`
	RemoteDSN    string `yaml:"remote_dsn"`
	MaxConns     int    `yaml:"max_conns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ObserverPort: DefaultObserverPort,
		BackendURL:   DefaultBackendURL,
		MaxConns:     DefaultMaxConns,
	}
}

// DataDir returns the sessiond data directory under the user's home.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the local records database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbFileName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsName)
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default settings: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// EnsureAll initializes the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads the settings file and applies environment overrides. A missing
// or unreadable settings file falls back to defaults rather than failing the
// daemon.
func Load() (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(SettingsPath()); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			cfg = Default()
		}
		applyDefaults(cfg)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyDefaults backfills zero values left by a partial settings file.
func applyDefaults(cfg *Config) {
	if cfg.ObserverPort <= 0 {
		cfg.ObserverPort = DefaultObserverPort
	}
	if cfg.BackendURL == "" {
		cfg.BackendURL = DefaultBackendURL
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SESSIOND_OBSERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.ObserverPort = port
		}
	}
	if v := os.Getenv("SESSIOND_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("SESSIOND_REMOTE_DSN"); v != "" {
		cfg.RemoteDSN = v
	}
}
