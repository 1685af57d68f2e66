package config

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "penpal/pkg/logx"
)

const (
	// reloadDebounce absorbs the multi-event bursts editors produce for
	// a single save.
	reloadDebounce = 250 * time.Millisecond

	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second

	validateTimeout = 5 * time.Second
)

// Watch follows the config file until ctx ends. Each settled change is
// parsed, validated and, when the content differs from the committed
// snapshot, committed and published to subscribers. A broken watcher is
// recreated with jittered backoff; fsnotify can wedge after editor
// rename dances, so self-healing beats trusting one watcher instance.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	base := filepath.Base(m.path)

	d := &debouncer{delay: reloadDebounce, fn: func() { m.reload(ctx) }}
	defer d.stop()

	backoff := watchBackoffMin
	for ctx.Err() == nil {
		started, err := m.watchOnce(ctx, dir, base, d)
		if ctx.Err() != nil {
			return nil
		}
		if started {
			backoff = watchBackoffMin
		}
		if err != nil {
			m.log.Warn("config watch broken, restarting",
				logx.String("dir", dir), logx.Err(err), logx.Dur("backoff", backoff))
		} else {
			m.log.Warn("config watcher stopped, restarting",
				logx.String("dir", dir), logx.Dur("backoff", backoff))
		}
		if !sleepJittered(ctx, backoff) {
			return nil
		}
		if backoff *= 2; backoff > watchBackoffMax {
			backoff = watchBackoffMax
		}
	}
	return nil
}

// watchOnce runs one watcher lifetime: create, add the directory, pump
// events until the watcher breaks or ctx ends. The directory is watched
// rather than the file itself so rename-based saves keep working.
// started reports whether the watcher came up at all.
func (m *Manager) watchOnce(ctx context.Context, dir, base string, d *debouncer) (started bool, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return false, fmt.Errorf("watch %s: %w", dir, err)
	}
	m.log.Debug("watching config file", logx.String("dir", dir), logx.String("file", base))

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-w.Events:
			if !ok {
				return true, nil
			}
			// Any op counts: editors save through write, rename and
			// chmod chains depending on platform.
			if strings.EqualFold(filepath.Base(ev.Name), base) {
				m.log.Debug("config change detected", logx.String("op", ev.Op.String()))
				d.trigger()
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return true, nil
			}
			if werr == nil {
				continue
			}
			msg := strings.ToLower(werr.Error())
			if strings.Contains(msg, "overflow") {
				// Events were lost; reload once rather than guess what
				// changed.
				m.log.Warn("config watch overflow, forcing reload", logx.Err(werr))
				d.trigger()
				continue
			}
			if strings.Contains(msg, "closed") {
				return true, werr
			}
			m.log.Warn("config watch event error", logx.Err(werr), logx.String("dir", dir))
		}
	}
}

// reload parses the file and commits the result when it is valid and
// its content differs from the committed snapshot.
func (m *Manager) reload(ctx context.Context) {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("config reload failed", logx.String("path", m.path), logx.Err(err))
		return
	}

	h := contentHash(cfg)
	m.mu.RLock()
	same := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if same {
		m.log.Debug("config unchanged, reload skipped", logx.String("path", m.path))
		return
	}

	if m.validate != nil {
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		verr := m.validate(vctx, cfg)
		cancel()
		if verr != nil {
			m.log.Warn("config rejected by validator", logx.String("path", m.path), logx.Err(verr))
			return
		}
	}

	m.commit(cfg, h)
	m.publish(cfg)
	m.log.Debug("config committed", logx.String("path", m.path), logx.Uint64("hash", h))
}

// debouncer coalesces bursts of trigger calls into one fn invocation
// after a quiet delay.
type debouncer struct {
	delay time.Duration
	fn    func()

	mu sync.Mutex
	t  *time.Timer
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
	d.t = time.AfterFunc(d.delay, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
}

// sleepJittered waits for d plus up to half of d again, or until ctx
// ends.
func sleepJittered(ctx context.Context, d time.Duration) bool {
	d += time.Duration(rand.Int63n(int64(d/2) + 1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
