package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears every TADA_ variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"TADA_DATA_DIR", "TADA_STORAGE", "TADA_DSN", "TADA_BASE_URL", "TADA_TOKEN",
		"TADA_DEVICE_ID", "TADA_LOG_LEVEL", "TADA_LOG_FILE", "TADA_THEME", "TADA_GENERATE_FAILS",
	} {
		t.Setenv(k, "")
	}
	return home
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".tada"), cfg.DataDir)
	assert.Equal(t, StorageJSON, cfg.Storage)
	assert.True(t, cfg.Offline())
	assert.Equal(t, DefaultDeviceID, cfg.DeviceID)
	assert.Equal(t, filepath.Join(home, ".tada", "tada.log"), cfg.LogFile)
	assert.Equal(t, filepath.Join(home, ".tada", "todo_memes.json"), cfg.JSONPath())
	assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, time.Second, cfg.Remote.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Remote.MaxBackoff)
	assert.Equal(t, DefaultMaxAttempts, cfg.Remote.MaxAttempts)
	assert.Equal(t, DefaultReadAttempts, cfg.Remote.ReadAttempts)
	assert.Less(t, cfg.Remote.ReadAttempts, cfg.Remote.MaxAttempts)
	assert.Empty(t, cfg.Path)
}

func TestLoadConfigFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".tada", DefaultFileName)
	writeFile(t, path, `
storage = "sqlite"
base_url = "http://localhost:8080"
theme = "neon"

[remote]
timeout = "3s"
max_attempts = 2
read_attempts = 1

[server]
addr = "127.0.0.1:9000"
token = "dev"
`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, filepath.Join(home, ".tada", DefaultDBFileName), cfg.DSN)
	assert.False(t, cfg.Offline())
	assert.Equal(t, "neon", cfg.Theme)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 2, cfg.Remote.MaxAttempts)
	assert.Equal(t, 1, cfg.Remote.ReadAttempts)
	assert.Equal(t, 30*time.Second, cfg.Remote.MaxBackoff, "unset keys keep defaults")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	writeFile(t, path, `base_url = "http://file"`)

	data := filepath.Join(home, "data")
	t.Setenv("TADA_BASE_URL", "http://env")
	t.Setenv("TADA_DATA_DIR", data)
	t.Setenv("TADA_TOKEN", "tok")
	t.Setenv("TADA_GENERATE_FAILS", "25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.BaseURL)
	assert.Equal(t, data, cfg.DataDir)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, 25, cfg.Remote.GenerateFails)
	assert.Equal(t, filepath.Join(data, "credentials.json"), cfg.CredentialsPath())
}

func TestLoadErrors(t *testing.T) {
	home := isolate(t)

	_, err := Load(filepath.Join(home, "missing.toml"))
	assert.Error(t, err, "explicit path must exist")

	bad := filepath.Join(home, "bad.toml")
	writeFile(t, bad, `storage = "mongo"`)
	_, err = Load(bad)
	assert.ErrorContains(t, err, "unknown storage")

	unknown := filepath.Join(home, "unknown.toml")
	writeFile(t, unknown, `colour = "red"`)
	_, err = Load(unknown)
	assert.ErrorContains(t, err, "colour")

	pg := filepath.Join(home, "pg.toml")
	writeFile(t, pg, `storage = "postgres"`)
	_, err = Load(pg)
	assert.ErrorContains(t, err, "dsn")

	reads := filepath.Join(home, "reads.toml")
	writeFile(t, reads, "[remote]\nread_attempts = -1")
	_, err = Load(reads)
	assert.ErrorContains(t, err, "read_attempts")

	t.Setenv("TADA_GENERATE_FAILS", "lots")
	_, err = Load("")
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)
	t.Setenv("TADA_TEST_DIR", "/srv/x")

	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, filepath.Join(home, "a", "b"), expandPath("~/a/b"))
	assert.Equal(t, "/srv/x/y", expandPath("$TADA_TEST_DIR/y"))
	assert.Equal(t, "relative", expandPath("relative"))
	assert.Empty(t, expandPath(""))
}
