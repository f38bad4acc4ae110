package config

import (
	"fmt"
	"strings"
)

// normalize clamps numeric settings into range and replaces non-positive
// durations with their defaults. Unknown enum values are errors.
func normalize(cfg *Config) error {
	cfg.MaxHistoryItems = clamp(cfg.MaxHistoryItems, MinHistoryItems, MaxHistoryItems)
	cfg.CleanupDays = clamp(cfg.CleanupDays, MinCleanupDays, MaxCleanupDays)

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.WriteRetryDelay <= 0 {
		cfg.WriteRetryDelay = DefaultWriteRetryDelay
	}
	if cfg.MaxItemSize < 0 {
		cfg.MaxItemSize = DefaultMaxItemSize
	}

	cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
	switch cfg.StorageBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("storage_backend must be %q or %q, got %q", BackendJSON, BackendSQLite, cfg.StorageBackend)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}

	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
