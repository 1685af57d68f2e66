package scheduler

import (
	"context"
	"fmt"
	logx "penpal/pkg/logx"
	"strings"
	"sync"
	"time"

	"penpal/internal/domain"
	"penpal/internal/eventbus"
	rtsup "penpal/internal/runtime/supervisor"
)

const (
	defaultDispatchTimeout = 2 * time.Minute

	// Bound on waiting for old streams while restarting in place, so a
	// reload can't hang behind a slow dispatch.
	streamDrainTimeout = 10 * time.Second
)

// Config controls the scheduling core.
type Config struct {
	Timezone        string        // IANA TZ, e.g. "Asia/Shanghai"; empty means local
	DispatchTimeout time.Duration // per-fire pipeline budget; 0 means default
}

func (c Config) dispatchTimeout() time.Duration {
	if c.DispatchTimeout <= 0 {
		return defaultDispatchTimeout
	}
	return c.DispatchTimeout
}

// Dispatcher runs one fire through the generate-and-send pipeline.
type Dispatcher interface {
	Execute(ctx context.Context, fire domain.FireEvent) (domain.SendReceipt, error)
}

// ResultSink receives per-fire outcomes. Implementations must not panic
// into the caller and must not block for long.
type ResultSink interface {
	DispatchSucceeded(r domain.SendReceipt)
	DispatchFailed(fire domain.FireEvent, err error)
}

// FireInfo is the bus payload for a fire.
type FireInfo struct {
	Account string    `json:"account"`
	FireID  string    `json:"fire_id"`
	At      time.Time `json:"at"`
}

// SkipInfo is the bus payload for an excluded account.
type SkipInfo struct {
	Account string `json:"account"`
	Reason  string `json:"reason"`
}

// ResultInfo is the bus payload for one dispatch outcome.
type ResultInfo struct {
	Account   string `json:"account"`
	FireID    string `json:"fire_id"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Service runs one independent stream per account: wait until the next
// fire, dispatch, report to the sink, rearm, repeat. Streams never share
// state with each other, so one account's slow or failing dispatch cannot
// delay another's schedule.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	bus   eventbus.Bus
	clock Clock
	disp  Dispatcher
	sink  ResultSink

	cfg      Config
	accounts []domain.Account
	loc      *time.Location

	sup    *rtsup.Supervisor
	runCtx context.Context

	smu    sync.Mutex
	status map[string]*StreamStatus
}

func New(cfg Config, accounts []domain.Account, clock Clock, disp Dispatcher, sink ResultSink, log logx.Logger, bus eventbus.Bus) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log.With(logx.String("comp", "scheduler")),
		bus:      bus,
		clock:    clock,
		disp:     disp,
		sink:     sink,
		cfg:      cfg,
		accounts: append([]domain.Account(nil), accounts...),
		status:   map[string]*StreamStatus{},
	}
}

// Start arms one stream per account. It is idempotent while running.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return nil
	}
	loc, err := resolveLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	s.loc = loc
	s.runCtx = ctx
	s.startStreamsLocked(ctx)
	s.log.Info("started",
		logx.String("tz", loc.String()),
		logx.Int("accounts", len(s.accounts)),
		logx.Dur("dispatch_timeout", s.cfg.dispatchTimeout()),
	)
	return nil
}

func (s *Service) startStreamsLocked(ctx context.Context) {
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// One broken stream must not take the rest down.
		rtsup.WithCancelOnError(false),
	)
	s.resetStatus(s.accounts)

	loc := s.loc
	timeout := s.cfg.dispatchTimeout()
	for _, a := range s.accounts {
		t, err := NewTimer(a)
		if err != nil {
			s.log.Error("malformed cron, account excluded",
				logx.String("account", a.Name), logx.String("cron", a.CronExpr), logx.Err(err))
			s.statusExclude(a.Name, err)
			s.publishSkip(a, err)
			continue
		}
		tm := t
		s.sup.GoRestart("stream."+a.Name, func(c context.Context) error {
			return s.streamLoop(c, tm, loc, timeout)
		}, rtsup.WithPublishFirstError(true))
	}
}

// Stop wakes every sleeping stream and waits until ctx deadline for all
// streams to exit. In-flight dispatches finish under their own timeout.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.runCtx = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}

	sup.Cancel()
	_ = sup.Wait(ctx)
	if ctx.Err() != nil {
		s.log.Warn("stop deadline hit with streams still winding down")
	}
	s.log.Info("stopped", logx.Dur("took", time.Since(start)))
}

// Run starts the streams and blocks until ctx is canceled and every stream
// has exited.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	// Streams wind down on their own once ctx is canceled; Apply may have
	// swapped in new stream sets, so wait for whichever is current.
	for {
		s.mu.Lock()
		sup := s.sup
		s.mu.Unlock()
		if sup == nil {
			return nil
		}
		_ = sup.Wait(context.Background())
		s.mu.Lock()
		if s.sup == sup {
			s.sup = nil
			s.runCtx = nil
		}
		s.mu.Unlock()
	}
}

// Apply replaces configuration and the account set. When running, streams
// are restarted in place: sleepers wake immediately, in-flight dispatches
// finish, and fresh streams arm from the new config.
func (s *Service) Apply(cfg Config, accounts []domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, err := resolveLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("scheduler timezone: %w", err)
	}
	s.cfg = cfg
	s.accounts = append([]domain.Account(nil), accounts...)
	s.loc = loc

	if s.sup == nil {
		return nil
	}

	old := s.sup
	old.Cancel()
	wctx, cancel := context.WithTimeout(context.Background(), streamDrainTimeout)
	_ = old.Wait(wctx)
	if wctx.Err() != nil {
		s.log.Warn("stream drain timed out, starting new streams anyway")
	}
	cancel()

	s.startStreamsLocked(s.runCtx)
	s.log.Info("streams restarted", logx.String("tz", loc.String()), logx.Int("accounts", len(s.accounts)))
	return nil
}

func (s *Service) publishFire(f domain.FireEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Type: eventbus.TypeSchedulerFired,
		Time: f.At,
		Data: FireInfo{Account: f.Account.Name, FireID: f.ID.String(), At: f.At},
	})
}

func (s *Service) publishResult(fire domain.FireEvent, receipt domain.SendReceipt, err error) {
	if s.bus == nil {
		return
	}
	info := ResultInfo{Account: fire.Account.Name, FireID: fire.ID.String()}
	typ := eventbus.TypePipelineSent
	if err != nil {
		typ = eventbus.TypePipelineFailed
		info.Error = err.Error()
	} else {
		info.MessageID = receipt.MessageID
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: info})
}

func (s *Service) publishSkip(a domain.Account, err error) {
	if s.bus == nil {
		return
	}
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	s.bus.Publish(eventbus.Event{
		Type: eventbus.TypeSchedulerSkipped,
		Time: time.Now(),
		Data: SkipInfo{Account: a.Name, Reason: reason},
	})
}

func resolveLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
