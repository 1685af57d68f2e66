// Package supervisor runs named goroutines tied to one shared context,
// with panic recovery, first-error capture and an optional
// restart-with-backoff mode for long-lived loops.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	logx "penpal/pkg/logx"
)

type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log         logx.Logger
	cancelOnErr bool

	errMu sync.Mutex
	err   error

	wg       sync.WaitGroup
	waitOnce sync.Once
	idle     chan struct{} // closed once all goroutines have exited
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError cancels the supervisor context on the first non-nil
// error or panic from any goroutine started with Go.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		idle:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context. It does not wait; use Wait.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first error or panic captured from any goroutine.
func (s *Supervisor) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Go starts fn under the supervisor context. A panic is logged with its
// stack and recorded as the goroutine's error. context.Canceled returns
// are clean exits.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Debug("task started", logx.String("name", name))
		err := s.protect(s.ctx, name, fn)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.publish(fmt.Errorf("%s: %w", name, err))
			if s.cancelOnErr {
				s.cancel()
			}
		}
		s.log.Debug("task stopped", logx.String("name", name))
	}()
}

// Go0 is Go for functions without an error return.
func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

const (
	restartBackoffMin = 250 * time.Millisecond
	restartBackoffMax = 30 * time.Second
	// A run at least this long resets the backoff, so a rare failure in a
	// loop that was healthy for hours restarts promptly.
	restartHealthyRun = 30 * time.Second
)

type RestartOption func(*restartSpec)

type restartSpec struct {
	publishFirstErr bool
}

// WithPublishFirstError records the first failure as the supervisor error
// while the loop keeps restarting, so it surfaces in logs and health.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(r *restartSpec) { r.publishFirstErr = enabled }
}

// GoRestart runs fn in a loop, restarting after errors or panics with
// jittered exponential backoff until the context ends. A nil or
// context.Canceled return stops the loop for good; long-lived workers
// return context.Canceled when their input closes during a drain.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	var spec restartSpec
	for _, o := range opts {
		o(&spec)
	}

	s.Go0(name+".restart", func(ctx context.Context) {
		backoff := restartBackoffMin
		for ctx.Err() == nil {
			began := time.Now()
			err := s.protect(ctx, name, fn)
			if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
				return
			}
			if spec.publishFirstErr {
				s.publish(fmt.Errorf("%s: %w", name, err))
			}

			if time.Since(began) >= restartHealthyRun {
				backoff = restartBackoffMin
			}
			wait := jittered(backoff)
			s.log.Warn("task restarting", logx.String("name", name), logx.Dur("backoff", wait), logx.Err(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
	})
}

// Wait blocks until every goroutine has exited or ctx ends, and returns
// the first captured error.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.waitOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.idle)
		}()
	})
	select {
	case <-s.idle:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// protect runs fn and converts a panic into an error, logging the stack.
func (s *Supervisor) protect(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task panicked", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(ctx)
}

func (s *Supervisor) publish(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// jittered pads d with up to 20% random extra so restarting loops spread
// out instead of thundering together.
func jittered(d time.Duration) time.Duration {
	if d > restartBackoffMax {
		d = restartBackoffMax
	}
	j := d / 5
	if j <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(j)+1))
}
