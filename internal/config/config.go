// Package config resolves settings from defaults, a TOML file and the
// environment, in that order. Command-line flags are applied by the caller.
package config

import (
	"path/filepath"
	"time"
)

const (
	StorageJSON     = "json"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	DefaultDataDir     = "~/.tada"
	DefaultFileName    = "config.toml"
	DefaultLogFileName = "tada.log"
	DefaultDBFileName  = "tada.db"
	DefaultDeviceID    = "go_cli"
	DefaultLogLevel    = "info"
	DefaultTheme       = "classic"
	DefaultServerAddr  = ":8080"
	DefaultTimeout     = 15 * time.Second
	DefaultMaxAttempts = 8
	// DefaultReadAttempts keeps `ls` with a dead backend to a few seconds
	// before it falls back to the cache.
	DefaultReadAttempts = 3
)

type Config struct {
	DataDir  string `toml:"data_dir"`
	Storage  string `toml:"storage"`
	DSN      string `toml:"dsn"`
	BaseURL  string `toml:"base_url"`
	Token    string `toml:"token"`
	DeviceID string `toml:"device_id"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	Theme    string `toml:"theme"`

	Remote RemoteConfig `toml:"remote"`
	Server ServerConfig `toml:"server"`

	// Path is the file the config was read from, empty when none was found.
	Path string `toml:"-"`
}

type RemoteConfig struct {
	Timeout        time.Duration `toml:"timeout"`
	InitialBackoff time.Duration `toml:"initial_backoff"`
	MaxBackoff     time.Duration `toml:"max_backoff"`
	// MaxAttempts bounds retries per request; 0 retries until cancelled.
	MaxAttempts int `toml:"max_attempts"`
	// ReadAttempts bounds list fetches; 0 uses MaxAttempts.
	ReadAttempts  int `toml:"read_attempts"`
	GenerateFails int `toml:"generate_fails"`
}

type ServerConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

func setDefaults(cfg *Config) {
	cfg.DataDir = DefaultDataDir
	cfg.Storage = StorageJSON
	cfg.DeviceID = DefaultDeviceID
	cfg.LogLevel = DefaultLogLevel
	cfg.Theme = DefaultTheme
	cfg.Remote = RemoteConfig{
		Timeout:        DefaultTimeout,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxAttempts:    DefaultMaxAttempts,
		ReadAttempts:   DefaultReadAttempts,
	}
	cfg.Server = ServerConfig{Addr: DefaultServerAddr}
}

// Offline reports whether no backend is configured.
func (c *Config) Offline() bool { return c.BaseURL == "" }

// JSONPath is the flat-file store location.
func (c *Config) JSONPath() string { return filepath.Join(c.DataDir, "todo_memes.json") }

// CredentialsPath is where `auth login` keeps the token.
func (c *Config) CredentialsPath() string { return filepath.Join(c.DataDir, "credentials.json") }
