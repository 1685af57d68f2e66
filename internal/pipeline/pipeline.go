// Package pipeline runs one dispatch: generate content, compose the
// message, send it. No retries; one fire is one attempt.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"penpal/internal/domain"
	"penpal/internal/generator"
	"penpal/internal/mailer"
	logx "penpal/pkg/logx"
)

var (
	// ErrGenerate marks a failure before anything was sent.
	ErrGenerate = errors.New("content generation failed")
	// ErrSend marks a transport failure after successful generation.
	ErrSend = errors.New("email send failed")
)

// ContentGenerator produces email content for an account prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt string) (generator.Content, error)
}

type Pipeline struct {
	gen    ContentGenerator
	sender mailer.Sender
	log    logx.Logger
	now    func() time.Time
}

func New(gen ContentGenerator, sender mailer.Sender, log logx.Logger) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pipeline{
		gen:    gen,
		sender: sender,
		log:    log.With(logx.String("comp", "pipeline")),
		now:    time.Now,
	}
}

// Execute runs generate, compose, send for one fire. A generation failure
// returns before the transport is touched; the error says which stage
// failed. The zero receipt accompanies any error.
func (p *Pipeline) Execute(ctx context.Context, fire domain.FireEvent) (domain.SendReceipt, error) {
	a := fire.Account

	content, err := p.gen.Generate(ctx, a.Prompt)
	if err != nil {
		return domain.SendReceipt{}, fmt.Errorf("%w: account %q: %v", ErrGenerate, a.Name, err)
	}

	subject := a.SubjectPrefix + content.Subject

	p.log.Debug("dispatching",
		logx.String("account", a.Name),
		logx.String("to", a.ToEmail),
		logx.String("subject", subject),
	)

	id, err := p.sender.Send(ctx, mailer.Message{
		From:    a.Sender(),
		To:      a.ToEmail,
		Subject: subject,
		Text:    content.Body,
	})
	if err != nil {
		return domain.SendReceipt{}, fmt.Errorf("%w: account %q: %v", ErrSend, a.Name, err)
	}

	return domain.SendReceipt{
		FireID:    fire.ID,
		Account:   a.Name,
		To:        a.ToEmail,
		Subject:   subject,
		MessageID: id,
		SentAt:    p.now(),
	}, nil
}
