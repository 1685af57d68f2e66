package mailer

import (
	"context"
	"fmt"
	logx "penpal/pkg/logx"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends emails through the Resend API.
type ResendSender struct {
	client  *resend.Client
	timeout time.Duration
	log     logx.Logger
}

func NewResendSender(apiKey string, timeout time.Duration, log logx.Logger) *ResendSender {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ResendSender{
		client:  resend.NewClient(apiKey),
		timeout: timeout,
		log:     log.With(logx.String("comp", "mailer")),
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	html := msg.HTML
	if html == "" {
		html = htmlBody(msg.Text)
	}
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    html,
		Text:    msg.Text,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	s.log.Debug("email accepted",
		logx.String("to", msg.To),
		logx.String("id", sent.Id),
	)
	return sent.Id, nil
}
