package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "penpal/pkg/logx"
)

var ErrDisabled = errors.New("storage is disabled")

// Config selects and tunes the persistence backend.
//
// Driver is one of "file" (snapshot plus journal, no extra deps),
// "sqlite"/"sqlite3" (requires the sqlite build tag), or ""/"none" to
// run without persistence.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite lock wait; zero keeps the default
}

// Store persists alert suppression windows across restarts.
//
// Keys are suppression keys; until is the instant a key stops being
// suppressed. Implementations prune expired keys opportunistically.
type Store interface {
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open builds the configured store, or (nil, nil) when storage is
// disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
