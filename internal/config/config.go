// Package config loads clipview settings from a TOML file and CLIPVIEW_
// environment variables and reloads them when the file changes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "CLIPVIEW"

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds the effective settings.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	DataDir         string        `mapstructure:"data_dir"`
	HistoryFile     string        `mapstructure:"history_file"`
	StorageBackend  string        `mapstructure:"storage_backend"`
	DBPath          string        `mapstructure:"db_path"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxHistoryItems int           `mapstructure:"max_history_items"`
	MaxItemSize     int           `mapstructure:"max_item_size"`
	AutoCleanup     bool          `mapstructure:"auto_cleanup"`
	CleanupDays     int           `mapstructure:"cleanup_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	WriteRetryDelay time.Duration `mapstructure:"write_retry_delay"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// TokenFile is where the daemon writes the API bearer token.
func (c Config) TokenFile() string {
	return filepath.Join(c.DataDir, "api-token")
}

// Manager owns the viper instance and the current Config.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    Config
	callbacks []func(Config)
	watching  bool
}

// NewManager creates a Manager. An empty configFile searches for config.toml
// in the XDG config directory and the working directory.
func NewManager(configFile string) (*Manager, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configDir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return &Manager{v: v}, nil
}

// Load reads the config file, if any, and the environment.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	cfg, err := m.decode()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// File returns the config file in use, or "" when running on defaults and
// environment only.
func (m *Manager) File() string {
	return m.v.ConfigFileUsed()
}

// OnConfigChange registers fn to run with the new configuration after every
// successful reload.
func (m *Manager) OnConfigChange(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch reloads the configuration whenever the config file changes. It
// returns false when there is no file to watch.
func (m *Manager) Watch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return true
	}
	if m.v.ConfigFileUsed() == "" {
		return false
	}

	m.v.OnConfigChange(func(e fsnotify.Event) {
		if err := m.reload(); err != nil {
			slog.Warn("config reload failed, keeping previous settings", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name, "op", e.Op.String())

		m.mu.RLock()
		cfg := m.config
		callbacks := make([]func(Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.v.WatchConfig()

	m.watching = true
	return true
}

func (m *Manager) reload() error {
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	cfg, err := m.decode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

func (m *Manager) decode() (Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := resolvePaths(&cfg); err != nil {
		return Config{}, err
	}

	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
