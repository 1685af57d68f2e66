package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "penpal/pkg/logx"
)

func openTestStore(t *testing.T, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFileDedupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := openTestStore(t, filepath.Join(dir, "state.json"))

	ctx := context.Background()
	until := time.Now().Add(time.Hour)
	if err := st.PutDedup(ctx, "alert:abc", until); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}

	got, ok, err := st.GetDedup(ctx, "alert:abc")
	if err != nil {
		t.Fatalf("GetDedup: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to exist")
	}
	if got.UnixMilli() != until.UnixMilli() {
		t.Fatalf("until = %v, want %v", got, until)
	}

	_, ok, err = st.GetDedup(ctx, "missing")
	if err != nil {
		t.Fatalf("GetDedup missing: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to be absent")
	}
}

func TestFileDedupSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	until := time.Now().Add(time.Hour)
	if err := st.PutDedup(ctx, "alert:persist", until); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := openTestStore(t, path)
	_, ok, err := st2.GetDedup(ctx, "alert:persist")
	if err != nil {
		t.Fatalf("GetDedup after reopen: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to survive reopen")
	}
}

func TestFileDedupPrunesExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := st.PutDedup(ctx, "alert:stale", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := openTestStore(t, path)
	_, ok, err := st2.GetDedup(ctx, "alert:stale")
	if err != nil {
		t.Fatalf("GetDedup: %v", err)
	}
	if ok {
		t.Fatalf("expected expired key to be pruned on load")
	}
}

func TestFileDedupCompaction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	until := time.Now().Add(time.Hour)
	for i := 0; i < compactEvery; i++ {
		if err := st.PutDedup(ctx, "alert:same", until); err != nil {
			t.Fatalf("PutDedup #%d: %v", i, err)
		}
	}

	snap := filepath.Join(dir, "state.dedup.snapshot.json")
	if _, err := os.Stat(snap); err != nil {
		t.Fatalf("expected snapshot after %d writes: %v", compactEvery, err)
	}
	journal := filepath.Join(dir, "state.dedup.journal.jsonl")
	info, err := os.Stat(journal)
	if err != nil {
		t.Fatalf("stat journal: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected journal truncated after compaction, size = %d", info.Size())
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := openTestStore(t, path)
	_, ok, err := st2.GetDedup(ctx, "alert:same")
	if err != nil {
		t.Fatalf("GetDedup after compaction: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to survive compaction and reopen")
	}
}

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q): expected nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
