package alert

import (
	"context"
	"math/rand"
	"time"

	"penpal/internal/eventbus"
	logx "penpal/pkg/logx"
)

const sendTimeout = 10 * time.Second

// workerLoop drains the queue until the context ends or the queue is
// closed. A closed queue is the normal drain path, reported as a clean
// exit so the supervisor does not restart the worker.
func (s *Service) workerLoop(ctx context.Context, q <-chan pending) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-q:
			if !ok {
				return context.Canceled
			}
			s.deliver(ctx, p)
		}
	}
}

// deliver pushes one alert through the transport, retrying per config.
// The outcome is published either way; a final failure is swallowed.
func (s *Service) deliver(ctx context.Context, p pending) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	tr := s.transport
	s.mu.Unlock()
	if tr == nil || p.msg.Text == "" {
		return
	}

	attempts := 1 + cfg.RetryMax
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return
			}
		}
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := tr.SendText(sctx, p.msg.Text)
		cancel()
		if err == nil {
			s.publish(eventbus.TypeAlertSent, p.msg, p.key, nil)
			return
		}
		lastErr = err
		s.log.Debug("alert send failed",
			logx.String("kind", p.msg.Kind),
			logx.Int("attempt", attempt),
			logx.Int("of", attempts),
			logx.Err(err))
		if attempt == attempts {
			break
		}
		if !sleepUnlessDone(ctx, backoffDelay(cfg.RetryBase, cfg.RetryMaxDelay, attempt)) {
			return
		}
	}
	s.log.Warn("alert dropped after retries",
		logx.String("kind", p.msg.Kind),
		logx.String("account", p.msg.Account),
		logx.Err(lastErr))
	s.publish(eventbus.TypeAlertFailed, p.msg, p.key, lastErr)
}

// backoffDelay doubles base per attempt, capped at max, jittered to
// 0.7x-1.3x so synchronized retries spread out.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	d := base
	for i := 1; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	if d > max {
		d = max
	}
	return d
}

func sleepUnlessDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
