//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	logx "penpal/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var schemaSQL string

// pruneEveryOps is how many writes pass between expired-row sweeps.
const pruneEveryOps = 500

// sqliteStore keeps the suppression table in a SQLite file. The
// modernc driver is pure Go, so the sqlite tag costs no cgo.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	ops atomic.Uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite driver requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers anyway, and this keeps
	// the pragmas below in force for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas,
			fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	for _, p := range pragmas {
		_, _ = db.Exec(p)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppression(key, until_ms) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until_ms=excluded.until_ms`,
		key, until.UnixMilli(),
	)
	if err != nil {
		return err
	}
	if s.ops.Add(1)%pruneEveryOps == 0 {
		s.pruneExpired()
	}
	return nil
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, ErrDisabled
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until_ms FROM suppression WHERE key = ?`, key).Scan(&ms)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, false, nil
	case err != nil:
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// pruneExpired drops rows whose window has passed. Bounded so a slow
// disk cannot stall the Put that triggered it.
func (s *sqliteStore) pruneExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM suppression WHERE until_ms < ?`, time.Now().UnixMilli()); err != nil {
		s.log.Debug("dedup prune failed", logx.Err(err))
	}
}
