package scheduler

import (
	"time"

	"penpal/internal/cronexpr"
	"penpal/internal/domain"
)

// Timer owns one account's schedule state. It is not safe for concurrent
// use: exactly one stream goroutine owns it for its whole lifetime.
type Timer struct {
	account domain.Account
	expr    *cronexpr.Expression
	next    time.Time
}

// NewTimer parses the account's cron expression once. The returned timer is
// unarmed until Start.
func NewTimer(a domain.Account) (*Timer, error) {
	expr, err := cronexpr.Parse(a.CronExpr)
	if err != nil {
		return nil, err
	}
	return &Timer{account: a, expr: expr}, nil
}

func (t *Timer) Account() domain.Account { return t.account }

// Start arms the timer with the first fire strictly after now.
func (t *Timer) Start(now time.Time) error { return t.Rearm(now) }

// NextFire returns the armed fire instant (zero until Start).
func (t *Timer) NextFire() time.Time { return t.next }

// UntilFire returns the remaining wait. Zero or negative means due now.
func (t *Timer) UntilFire(now time.Time) time.Duration { return t.next.Sub(now) }

// Rearm advances the schedule strictly past ref. Using the post-dispatch
// instant as ref guarantees forward progress: a dispatch that overran one or
// more ticks never causes catch-up fires.
func (t *Timer) Rearm(ref time.Time) error {
	next, err := t.expr.Next(ref)
	if err != nil {
		return err
	}
	t.next = next
	return nil
}
