package app

import (
	"fmt"
	"strings"
	"time"

	"penpal/internal/config"
	"penpal/internal/storage"
)

const defaultFileStorePath = "penpal_store"

// mapStorageConfig translates the storage section into the store's own
// config. ok is false when no store is configured.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sec := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sec.Driver))
	path := strings.TrimSpace(sec.Path)

	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		if path == "" {
			path = defaultFileStorePath
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.driver %q requires storage.path", sec.Driver)
		}
		busy, err := config.DurationOr("storage.busy_timeout", sec.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("storage.driver: unknown driver %q", sec.Driver)
	}
}
