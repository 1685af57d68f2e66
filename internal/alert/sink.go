package alert

import (
	"context"
	"errors"
	logx "penpal/pkg/logx"

	"penpal/internal/domain"
)

// Sink receives per-fire dispatch results from the scheduler. It logs
// them and forwards alerts best-effort; it never returns an error and
// never panics into the caller.
type Sink struct {
	svc *Service
	log logx.Logger
}

func NewSink(svc *Service, log logx.Logger) *Sink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{svc: svc, log: log.With(logx.String("comp", "sink"))}
}

func (s *Sink) DispatchSucceeded(r domain.SendReceipt) {
	defer func() { _ = recover() }()

	s.log.Info("dispatch succeeded",
		logx.String("account", r.Account),
		logx.String("to", r.To),
		logx.String("subject", r.Subject),
		logx.String("message_id", r.MessageID),
		logx.String("fire_id", r.FireID.String()),
	)

	if s.svc == nil || !s.svc.Enabled() || !s.svc.NotifySuccess() {
		return
	}
	err := s.svc.Notify(context.Background(), Message{
		Kind:    "success",
		Account: r.Account,
		Text:    formatSuccess(r),
	})
	if err != nil && !errors.Is(err, ErrDisabled) {
		s.log.Warn("success alert not queued", logx.Err(err), logx.String("account", r.Account))
	}
}

func (s *Sink) DispatchFailed(fire domain.FireEvent, dispatchErr error) {
	defer func() { _ = recover() }()

	s.log.Error("dispatch failed",
		logx.String("account", fire.Account.Name),
		logx.String("to", fire.Account.ToEmail),
		logx.Time("fired_at", fire.At),
		logx.String("fire_id", fire.ID.String()),
		logx.Err(dispatchErr),
	)

	if s.svc == nil || !s.svc.Enabled() {
		return
	}
	err := s.svc.Notify(context.Background(), Message{
		Kind:    "failure",
		Account: fire.Account.Name,
		Text:    formatFailure(fire, dispatchErr),
	})
	if err != nil && !errors.Is(err, ErrDisabled) {
		s.log.Warn("failure alert not queued", logx.Err(err), logx.String("account", fire.Account.Name))
	}
}
