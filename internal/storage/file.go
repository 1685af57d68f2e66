package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "penpal/pkg/logx"
)

// compactEvery is the journal write count that triggers folding the
// journal into the snapshot.
const compactEvery = 1000

// journalStore keeps the suppression table in a JSON snapshot plus an
// append-only JSON Lines journal beside it. Writes append to the
// journal; every compactEvery writes it is folded into the snapshot
// and truncated. Opening replays snapshot then journal and drops
// entries whose window has already passed.
type journalStore struct {
	log logx.Logger

	mu       sync.Mutex
	snapPath string
	journal  *os.File
	until    map[string]int64 // key -> suppress-until, unix milli
	writes   int
}

// journalLine is one appended record.
type journalLine struct {
	Key   string `json:"key"`
	Until int64  `json:"until"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("file driver requires storage.path")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	snapPath := prefix + ".dedup.snapshot.json"
	journalPath := prefix + ".dedup.journal.jsonl"

	until := loadTable(snapPath, journalPath)
	dropExpired(until, time.Now())

	j, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &journalStore{
		log:      log,
		snapPath: snapPath,
		journal:  j,
		until:    until,
	}, nil
}

// loadTable rebuilds the table from the snapshot plus any journal
// entries written after it. Unreadable state starts a fresh table; the
// cost is at most one duplicate alert per key.
func loadTable(snapPath, journalPath string) map[string]int64 {
	table := map[string]int64{}
	if b, err := os.ReadFile(snapPath); err == nil {
		_ = json.Unmarshal(b, &table)
	}
	f, err := os.Open(journalPath)
	if err != nil {
		return table
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ln journalLine
		if json.Unmarshal(sc.Bytes(), &ln) != nil || ln.Key == "" {
			continue
		}
		table[ln.Key] = ln.Until
	}
	return table
}

func dropExpired(m map[string]int64, now time.Time) {
	ms := now.UnixMilli()
	for k, v := range m {
		if v < ms {
			delete(m, k)
		}
	}
}

func (s *journalStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	_ = ctx // local file writes have nothing to cancel
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return errors.New("store closed")
	}
	ms := until.UnixMilli()
	s.until[key] = ms

	b, err := json.Marshal(journalLine{Key: key, Until: ms})
	if err != nil {
		return err
	}
	if _, err := s.journal.Write(append(b, '\n')); err != nil {
		return err
	}
	if s.writes++; s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("snapshot compaction failed", logx.Err(err))
		}
	}
	return nil
}

func (s *journalStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.until[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *journalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

// compactLocked folds the live table into the snapshot and truncates
// the journal. The snapshot is replaced atomically (temp file, rename).
func (s *journalStore) compactLocked() error {
	dropExpired(s.until, time.Now())

	b, err := json.Marshal(s.until)
	if err != nil {
		return err
	}
	tmp := s.snapPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekStart)
	return err
}
