package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "clipview"

// ConfigDir returns $XDG_CONFIG_HOME/clipview, defaulting to
// ~/.config/clipview.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/clipview, defaulting to
// ~/.local/share/clipview.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}

// resolvePaths fills data_dir, history_file and db_path when left empty.
func resolvePaths(cfg *Config) error {
	if cfg.DataDir == "" {
		dir, err := DataDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = dir
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(cfg.DataDir, "history.json")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "history.db")
	}
	return nil
}
