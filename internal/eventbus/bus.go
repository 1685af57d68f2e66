package eventbus

import (
	"sync"
	"time"
)

// Event is an in-memory signal that decouples components from their
// observers. penpal publishes small observability events (scheduler
// fires, pipeline outcomes, alert delivery, config reloads) and the app
// debug-logs them.
//
// Publish never blocks; a subscriber that stops draining its buffer
// loses events rather than slowing the publisher. Data should stay
// small and JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Well-known event types. Components may publish others; subscribers
// should tolerate unknown types.
const (
	TypeSchedulerFired   = "scheduler.fired"
	TypeSchedulerSkipped = "scheduler.skipped"
	TypePipelineSent     = "pipeline.sent"
	TypePipelineFailed   = "pipeline.failed"
	TypeAlertQueued      = "alert.queued"
	TypeAlertSent        = "alert.sent"
	TypeAlertFailed      = "alert.failed"
	TypeAlertDeduped     = "alert.deduped"
	TypeAlertDropped     = "alert.dropped"
	TypeConfigReloaded   = "config.reloaded"
)

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines; delivery
// happens on the publisher's stack.
func New() Bus {
	return &fanout{subs: map[uint64]chan Event{}}
}

type fanout struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	next uint64
}

// Publish delivers e to every subscriber with buffer room. Sends run
// under the read lock and channels close under the write lock, so a
// send can never hit a closed channel.
func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}
