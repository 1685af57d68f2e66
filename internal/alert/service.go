package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"penpal/internal/eventbus"
	rtsup "penpal/internal/runtime/supervisor"
	"penpal/internal/storage"
	logx "penpal/pkg/logx"

	"golang.org/x/time/rate"
)

var (
	ErrDisabled  = errors.New("alerts disabled")
	ErrQueueFull = errors.New("alert queue full")
	ErrStopped   = errors.New("alert service stopped")
)

// Transport delivers one alert text to the configured chat.
type Transport interface {
	SendText(ctx context.Context, text string) error
}

// pending is one accepted alert waiting for a worker.
type pending struct {
	msg Message
	key string // suppression key, computed at intake
}

// run owns the channels and workers of one Start/Stop cycle. Stop retires
// the whole run; a later Start builds a fresh one.
type run struct {
	queue    chan pending
	persistQ chan suppression // nil unless persistent dedup is on
	sup      *rtsup.Supervisor

	intake bool           // guarded by Service.mu; false once stopping
	enq    sync.WaitGroup // Notify calls still holding the queue
	done   chan struct{}  // closed when the drain has finished
}

// Service is the async alert pipeline: a bounded queue feeding a worker
// pool, rate limited, with retry and dedup. A full queue rejects instead
// of displacing older alerts, so the caller can log the loss.
//
// Safe for concurrent use.
type Service struct {
	mu        sync.Mutex
	log       logx.Logger
	transport Transport
	bus       eventbus.Bus
	store     storage.Store

	cfg     Config
	limiter *rate.Limiter

	cur *run

	seen *suppressor
}

func New(cfg Config, transport Transport, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		transport: transport,
		log:       log,
		bus:       bus,
		store:     store,
		seen:      newSuppressor(),
	}
	s.Apply(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) NotifySuccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.NotifySuccess
}

// Apply swaps runtime knobs. Rate, retry and dedup settings reach the
// running pipeline; queue size and worker count take effect on the next
// Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Start brings up the queue and workers. It is idempotent while running
// and waits for an in-flight Stop before restarting.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	for s.cur != nil {
		r := s.cur
		if r.intake {
			s.mu.Unlock()
			return
		}
		done := r.done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if !s.cfg.Enabled || s.transport == nil {
		s.mu.Unlock()
		return
	}
	cfg := s.cfg
	r := &run{
		queue:  make(chan pending, cfg.QueueSize),
		intake: true,
		done:   make(chan struct{}),
	}
	if cfg.PersistDedup && s.store != nil {
		r.persistQ = make(chan suppression, 256)
	}
	r.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// Alert delivery is best-effort; a failure cancels nothing.
		rtsup.WithCancelOnError(false),
	)
	s.cur = r
	st := s.store
	s.mu.Unlock()

	if r.persistQ != nil {
		r.sup.GoRestart("dedup.persist", func(c context.Context) error {
			return s.persistLoop(c, r.persistQ, st)
		}, rtsup.WithPublishFirstError(true))
	}
	for i := 0; i < cfg.Workers; i++ {
		r.sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			return s.workerLoop(c, r.queue)
		}, rtsup.WithPublishFirstError(true))
	}
}

// Stop closes intake and drains queued alerts best-effort until ctx ends,
// then force-cancels whatever is left.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	r := s.cur
	if r == nil {
		s.mu.Unlock()
		return
	}
	if !r.intake {
		done := r.done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	r.intake = false
	s.mu.Unlock()

	// The drain runs detached so a caller timeout leaves no state behind.
	go func() {
		defer close(r.done)
		// Once the last in-flight Notify is out, closing the channels lets
		// the workers drain and exit.
		r.enq.Wait()
		if r.persistQ != nil {
			close(r.persistQ)
		}
		close(r.queue)
		_ = r.sup.Wait(context.Background())

		s.mu.Lock()
		if s.cur == r {
			s.cur = nil
		}
		s.mu.Unlock()
	}()

	select {
	case <-r.done:
	case <-ctx.Done():
		r.sup.Cancel()
	}
}

// Notify queues one alert. It returns ErrDisabled when alerting is off,
// ErrStopped outside a running cycle and ErrQueueFull when the queue has
// no room. A suppressed duplicate is dropped silently with a nil return.
func (s *Service) Notify(ctx context.Context, m Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	r := s.cur
	if r == nil || !r.intake {
		s.mu.Unlock()
		return ErrStopped
	}
	window := s.cfg.DedupWindow
	limit := s.cfg.DedupMaxEntries
	var st storage.Store
	if s.cfg.PersistDedup {
		st = s.store
	}
	r.enq.Add(1)
	s.mu.Unlock()
	defer r.enq.Done()

	key := suppressionKey(m)
	if window > 0 && key != "" && !s.allow(ctx, r, key, window, limit, st) {
		s.publish(eventbus.TypeAlertDeduped, m, key, nil)
		return nil
	}

	s.publish(eventbus.TypeAlertQueued, m, key, nil)
	select {
	case r.queue <- pending{msg: m, key: key}:
		return nil
	default:
		s.publish(eventbus.TypeAlertDropped, m, key, ErrQueueFull)
		return ErrQueueFull
	}
}

func (s *Service) publish(typ string, m Message, key string, err error) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	ev := Event{Kind: m.Kind, Account: m.Account, Key: key, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}
