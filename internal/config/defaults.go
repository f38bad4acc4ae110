package config

import (
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultListenAddr      = "127.0.0.1:7457"
	DefaultPollInterval    = time.Second
	DefaultMaxHistoryItems = 100
	DefaultMaxItemSize     = 10 << 20
	DefaultCleanupDays     = 30
	DefaultCleanupInterval = 24 * time.Hour
	DefaultWriteRetryDelay = time.Second
)

// Limits applied by normalize.
const (
	MinHistoryItems = 10
	MaxHistoryItems = 1000
	MinCleanupDays  = 1
	MaxCleanupDays  = 365
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("data_dir", "")
	v.SetDefault("history_file", "")
	v.SetDefault("storage_backend", BackendJSON)
	v.SetDefault("db_path", "")
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("max_history_items", DefaultMaxHistoryItems)
	v.SetDefault("max_item_size", DefaultMaxItemSize)
	v.SetDefault("auto_cleanup", true)
	v.SetDefault("cleanup_days", DefaultCleanupDays)
	v.SetDefault("cleanup_interval", DefaultCleanupInterval)
	v.SetDefault("write_retry_delay", DefaultWriteRetryDelay)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}
