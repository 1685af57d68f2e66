// Package mailer provides outbound email delivery with pluggable providers.
package mailer

import "context"

// Message is one outbound email. From is the rendered sender
// ("Name <addr>" or a bare address). HTML is optional; providers derive
// it from Text when empty.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender is the interface for email providers. Send returns the
// provider's message ID when it has one.
type Sender interface {
	Send(ctx context.Context, msg Message) (id string, err error)
}
