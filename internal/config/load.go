package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load builds the configuration:
// 1. Defaults
// 2. Config file (path, or ~/.tada/config.toml when path is empty)
// 3. Environment variables
// An explicit path must exist; the default one is optional.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	file := path
	if file == "" {
		file = filepath.Join(expandPath(DefaultDataDir), DefaultFileName)
	}
	if err := loadConfigFile(cfg, file); err != nil {
		if path != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", file, err)
		}
	} else {
		cfg.Path = file
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := finalizeConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	str := map[string]*string{
		"TADA_DATA_DIR":  &cfg.DataDir,
		"TADA_STORAGE":   &cfg.Storage,
		"TADA_DSN":       &cfg.DSN,
		"TADA_BASE_URL":  &cfg.BaseURL,
		"TADA_TOKEN":     &cfg.Token,
		"TADA_DEVICE_ID": &cfg.DeviceID,
		"TADA_LOG_LEVEL": &cfg.LogLevel,
		"TADA_LOG_FILE":  &cfg.LogFile,
		"TADA_THEME":     &cfg.Theme,
	}
	for name, dst := range str {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("TADA_GENERATE_FAILS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TADA_GENERATE_FAILS: %w", err)
		}
		cfg.Remote.GenerateFails = n
	}
	return nil
}

// finalizeConfig expands paths, fills derived defaults and validates.
func finalizeConfig(cfg *Config) error {
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)

	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, DefaultLogFileName)
	} else {
		cfg.LogFile = expandPath(cfg.LogFile)
	}

	switch cfg.Storage {
	case StorageJSON:
	case StorageSQLite:
		if cfg.DSN == "" {
			cfg.DSN = filepath.Join(cfg.DataDir, DefaultDBFileName)
		}
	case StoragePostgres:
		if cfg.DSN == "" {
			return errors.New("storage postgres requires dsn")
		}
	default:
		return fmt.Errorf("unknown storage %q (want json, sqlite or postgres)", cfg.Storage)
	}

	if cfg.Remote.GenerateFails < 0 || cfg.Remote.GenerateFails > 100 {
		return fmt.Errorf("generate_fails %d out of range 0..100", cfg.Remote.GenerateFails)
	}
	if cfg.Remote.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts %d must not be negative", cfg.Remote.MaxAttempts)
	}
	if cfg.Remote.ReadAttempts < 0 {
		return fmt.Errorf("read_attempts %d must not be negative", cfg.Remote.ReadAttempts)
	}
	return nil
}

// expandPath expands environment variables and a leading ~/.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}
