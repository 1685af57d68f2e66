package scheduler

import (
	"context"
	logx "penpal/pkg/logx"
	"time"

	"penpal/internal/domain"
)

// streamLoop is one account's whole life: arm, wait, fire, dispatch,
// report, rearm. It returns ctx.Err() on shutdown and nil when the account
// is excluded (unreachable schedule); both end the stream.
//
// loc and timeout are pinned at stream start. Config changes reach a
// stream only through Apply restarting it.
func (s *Service) streamLoop(ctx context.Context, t *Timer, loc *time.Location, timeout time.Duration) error {
	a := t.Account()
	log := s.log.With(logx.String("account", a.Name))

	if err := t.Start(s.clock.Now().In(loc)); err != nil {
		log.Error("schedule unreachable, account excluded",
			logx.String("cron", a.CronExpr), logx.Err(err))
		s.statusExclude(a.Name, err)
		s.publishSkip(a, err)
		return nil
	}
	s.statusArmed(a.Name, t.NextFire())
	log.Info("stream armed", logx.String("cron", a.CronExpr), logx.Time("next_fire", t.NextFire()))

	for {
		wait := t.UntilFire(s.clock.Now().In(loc))
		if err := s.clock.Sleep(ctx, wait); err != nil {
			return err
		}

		fire := domain.NewFireEvent(a, s.clock.Now().In(loc))
		s.statusFired(a.Name, fire.At)
		s.publishFire(fire)
		log.Debug("fired", logx.Time("at", fire.At), logx.String("fire_id", fire.ID.String()))

		receipt, err := s.runDispatch(fire, timeout)
		s.statusResult(a.Name, err)
		s.publishResult(fire, receipt, err)
		if err != nil {
			if s.sink != nil {
				s.sink.DispatchFailed(fire, err)
			}
		} else if s.sink != nil {
			s.sink.DispatchSucceeded(receipt)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Rearm from the instant observed after dispatch: an overrunning
		// dispatch skips missed ticks instead of firing them back to back.
		if err := t.Rearm(s.clock.Now().In(loc)); err != nil {
			log.Error("rearm failed, account excluded",
				logx.String("cron", a.CronExpr), logx.Err(err))
			s.statusExclude(a.Name, err)
			s.publishSkip(a, err)
			return nil
		}
		s.statusArmed(a.Name, t.NextFire())
		log.Debug("rearmed", logx.Time("next_fire", t.NextFire()))
	}
}

// runDispatch executes one fire under its own deadline, detached from the
// stream context so shutdown never aborts a send midway.
func (s *Service) runDispatch(fire domain.FireEvent, timeout time.Duration) (domain.SendReceipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.disp.Execute(ctx, fire)
}
