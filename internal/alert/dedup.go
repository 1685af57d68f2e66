package alert

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"penpal/internal/storage"
)

const (
	storeLookupTimeout  = 25 * time.Millisecond
	persistWriteTimeout = 250 * time.Millisecond
)

// suppressionKey hashes the parts of a message that make it the same
// alert for dedup purposes. An all-empty message has no key.
func suppressionKey(m Message) string {
	if m.Kind == "" && m.Account == "" && m.Text == "" {
		return ""
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", m.Kind, m.Account, m.Text)
	return strconv.FormatUint(h.Sum64(), 16)
}

// suppression is one dedup entry queued for persistence.
type suppression struct {
	key   string
	until time.Time
}

// suppressor is the in-memory dedup table: key to suppress-until.
type suppressor struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func newSuppressor() *suppressor {
	return &suppressor{until: map[string]time.Time{}}
}

// active reports whether key is suppressed at now.
func (d *suppressor) active(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.until[key]
	return ok && now.Before(u)
}

// remember opens a suppression window for key, dropping expired entries
// and, when the table still exceeds limit, evicting the entries that
// expire soonest.
func (d *suppressor) remember(key string, until time.Time, limit int, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.until[key] = until
	for k, u := range d.until {
		if !now.Before(u) && k != key {
			delete(d.until, k)
		}
	}
	for limit > 0 && len(d.until) > limit {
		var (
			soonestKey string
			soonest    time.Time
		)
		for k, u := range d.until {
			if soonestKey == "" || u.Before(soonest) {
				soonestKey, soonest = k, u
			}
		}
		if soonestKey == "" {
			return
		}
		delete(d.until, soonestKey)
	}
}

// allow decides whether a keyed alert may go out now. The in-memory
// table answers first; with persistence on, a store hit from an earlier
// process also counts. Allowing opens a new window, persisted
// best-effort via the run's queue.
func (s *Service) allow(ctx context.Context, r *run, key string, window time.Duration, limit int, st storage.Store) bool {
	now := time.Now()
	if s.seen.active(key, now) {
		return false
	}
	if st != nil {
		lctx, cancel := context.WithTimeout(ctx, storeLookupTimeout)
		until, ok, err := st.GetDedup(lctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			s.seen.remember(key, until, limit, now)
			return false
		}
	}
	until := now.Add(window)
	s.seen.remember(key, until, limit, now)
	if st != nil && r.persistQ != nil {
		select {
		case r.persistQ <- suppression{key: key, until: until}:
		default:
		}
	}
	return true
}

// persistLoop writes suppression windows to the store so dedup survives
// a restart. Write errors are ignored: losing a window only risks one
// duplicate alert.
func (s *Service) persistLoop(ctx context.Context, q <-chan suppression, st storage.Store) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case w, ok := <-q:
			if !ok {
				return context.Canceled
			}
			wctx, cancel := context.WithTimeout(ctx, persistWriteTimeout)
			_ = st.PutDedup(wctx, w.key, w.until)
			cancel()
		}
	}
}
