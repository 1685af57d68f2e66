package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testClock is a manual clock: Sleep blocks until Advance moves the clock
// past the waiter's deadline or the caller's ctx is canceled.
type testClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*clockWaiter
}

type clockWaiter struct {
	deadline time.Time
	ch       chan struct{}
}

func newTestClock(at time.Time) *testClock { return &testClock{now: at} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Sleep(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return ctx.Err()
	}
	c.mu.Lock()
	w := &clockWaiter{deadline: c.now.Add(d), ch: make(chan struct{})}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		c.remove(w)
		return ctx.Err()
	}
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	rest := c.waiters[:0]
	for _, w := range c.waiters {
		if !c.now.Before(w.deadline) {
			close(w.ch)
		} else {
			rest = append(rest, w)
		}
	}
	c.waiters = rest
	c.mu.Unlock()
}

func (c *testClock) sleepers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *testClock) remove(w *clockWaiter) {
	c.mu.Lock()
	for i, x := range c.waiters {
		if x == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
}

// awaitSleepers waits (in real time) until n streams are suspended on the
// test clock.
func awaitSleepers(t *testing.T, c *testClock, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.sleepers() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sleepers, have %d", n, c.sleepers())
}

func TestSystemClockSleepElapses(t *testing.T) {
	clk := SystemClock()
	if err := clk.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Sleep = %v", err)
	}
}

func TestSystemClockSleepCancel(t *testing.T) {
	clk := SystemClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := clk.Sleep(ctx, time.Hour); err != context.Canceled {
		t.Fatalf("Sleep = %v, want context.Canceled", err)
	}
}

func TestTestClockAdvanceReleases(t *testing.T) {
	clk := newTestClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	done := make(chan error, 1)
	go func() { done <- clk.Sleep(context.Background(), 5*time.Minute) }()

	awaitSleepers(t, clk, 1)
	clk.Advance(4 * time.Minute)
	select {
	case err := <-done:
		t.Fatalf("woke early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	clk.Advance(time.Minute)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Sleep = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sleeper not released")
	}
}
