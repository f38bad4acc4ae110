package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every CLIPVIEW_ env var that Load() reads.
var allConfigKeys = []string{
	"CLIPVIEW_LISTEN_ADDR",
	"CLIPVIEW_DATA_DIR",
	"CLIPVIEW_HISTORY_FILE",
	"CLIPVIEW_STORAGE_BACKEND",
	"CLIPVIEW_DB_PATH",
	"CLIPVIEW_POLL_INTERVAL",
	"CLIPVIEW_MAX_HISTORY_ITEMS",
	"CLIPVIEW_MAX_ITEM_SIZE",
	"CLIPVIEW_AUTO_CLEANUP",
	"CLIPVIEW_CLEANUP_DAYS",
	"CLIPVIEW_CLEANUP_INTERVAL",
	"CLIPVIEW_WRITE_RETRY_DELAY",
	"CLIPVIEW_LOG_LEVEL",
	"CLIPVIEW_LOG_FORMAT",
}

// isolateConfigEnv unsets all CLIPVIEW_ env vars and points the XDG
// directories at a temp dir so tests don't see the host's settings.
func isolateConfigEnv(t *testing.T) string {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}

	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	return root
}

func load(t *testing.T, configFile string) Config {
	t.Helper()
	m, err := NewManager(configFile)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	return m.Get()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	root := isolateConfigEnv(t)

	cfg := load(t, "")

	dataDir := filepath.Join(root, "data", "clipview")
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "history.json"), cfg.HistoryFile)
	assert.Equal(t, filepath.Join(dataDir, "history.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dataDir, "api-token"), cfg.TokenFile())
	assert.Equal(t, BackendJSON, cfg.StorageBackend)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 100, cfg.MaxHistoryItems)
	assert.Equal(t, 10<<20, cfg.MaxItemSize)
	assert.True(t, cfg.AutoCleanup)
	assert.Equal(t, 30, cfg.CleanupDays)
	assert.Equal(t, 24*time.Hour, cfg.CleanupInterval)
	assert.Equal(t, time.Second, cfg.WriteRetryDelay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_File(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, `
listen_addr = "127.0.0.1:9000"
storage_backend = "sqlite"
poll_interval = "250ms"
max_history_items = 500
auto_cleanup = false
cleanup_days = 7
log_format = "json"
`)

	cfg := load(t, path)

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 500, cfg.MaxHistoryItems)
	assert.False(t, cfg.AutoCleanup)
	assert.Equal(t, 7, cfg.CleanupDays)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, `max_history_items = 500`)
	t.Setenv("CLIPVIEW_MAX_HISTORY_ITEMS", "200")
	t.Setenv("CLIPVIEW_DATA_DIR", "/srv/clipview")
	t.Setenv("CLIPVIEW_POLL_INTERVAL", "2s")

	cfg := load(t, path)

	assert.Equal(t, 200, cfg.MaxHistoryItems)
	assert.Equal(t, "/srv/clipview", cfg.DataDir)
	assert.Equal(t, "/srv/clipview/history.json", cfg.HistoryFile)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}

func TestLoad_Clamping(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantItems int
		wantDays  int
	}{
		{name: "below range", body: "max_history_items = 1\ncleanup_days = 0", wantItems: 10, wantDays: 1},
		{name: "above range", body: "max_history_items = 5000\ncleanup_days = 900", wantItems: 1000, wantDays: 365},
		{name: "in range", body: "max_history_items = 50\ncleanup_days = 14", wantItems: 50, wantDays: 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			cfg := load(t, writeConfig(t, tt.body))

			assert.Equal(t, tt.wantItems, cfg.MaxHistoryItems)
			assert.Equal(t, tt.wantDays, cfg.CleanupDays)
		})
	}
}

func TestLoad_NonPositiveDurationsFallBack(t *testing.T) {
	isolateConfigEnv(t)
	cfg := load(t, writeConfig(t, "poll_interval = \"0s\"\ncleanup_interval = \"-1h\""))

	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultCleanupInterval, cfg.CleanupInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "backend", body: `storage_backend = "postgres"`},
		{name: "log level", body: `log_level = "loud"`},
		{name: "log format", body: `log_format = "xml"`},
		{name: "poll interval", body: `poll_interval = "soon"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			m, err := NewManager(writeConfig(t, tt.body))
			require.NoError(t, err)

			assert.Error(t, m.Load())
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolateConfigEnv(t)

	cfg := load(t, filepath.Join(t.TempDir(), "absent.toml"))
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
}

func TestLoad_MalformedFile(t *testing.T) {
	isolateConfigEnv(t)
	m, err := NewManager(writeConfig(t, "max_history_items = ["))
	require.NoError(t, err)

	assert.Error(t, m.Load())
}

func TestWatch_NoFile(t *testing.T) {
	isolateConfigEnv(t)
	m, err := NewManager("")
	require.NoError(t, err)
	require.NoError(t, m.Load())

	assert.Empty(t, m.File())
	assert.False(t, m.Watch())
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	isolateConfigEnv(t)
	path := writeConfig(t, "max_history_items = 100\n")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())

	changed := make(chan Config, 4)
	m.OnConfigChange(func(cfg Config) { changed <- cfg })
	require.True(t, m.Watch())

	tmp := path + ".new"
	require.NoError(t, os.WriteFile(tmp, []byte("max_history_items = 250\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.MaxHistoryItems != 250 {
				continue
			}
			assert.Equal(t, 250, m.Get().MaxHistoryItems)
			return
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, Config{LogLevel: "warn", LogFormat: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}
