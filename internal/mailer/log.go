package mailer

import (
	"context"
	logx "penpal/pkg/logx"
)

// LogSender writes emails to the log instead of sending them.
// Useful for dry runs (email.provider = "log").
type LogSender struct {
	log logx.Logger
}

func NewLogSender(log logx.Logger) *LogSender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSender{log: log.With(logx.String("comp", "mailer"))}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (string, error) {
	_ = ctx
	s.log.Info("email (dry run, not sent)",
		logx.String("from", msg.From),
		logx.String("to", msg.To),
		logx.String("subject", msg.Subject),
		logx.Int("body_len", len(msg.Text)),
	)
	return "", nil
}
