package mailer

import (
	"context"
	"strings"
	"testing"

	logx "penpal/pkg/logx"
)

var (
	_ Sender = (*ResendSender)(nil)
	_ Sender = (*LogSender)(nil)
)

func TestHTMLBody(t *testing.T) {
	got := htmlBody("line one\nline two")
	if !strings.Contains(got, "line one<br>\nline two") {
		t.Fatalf("newlines not converted:\n%s", got)
	}
	if !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Fatalf("missing doctype:\n%s", got)
	}
	if !strings.Contains(got, `<meta charset="utf-8">`) {
		t.Fatalf("missing charset:\n%s", got)
	}
}

func TestHTMLBodyEscapes(t *testing.T) {
	got := htmlBody("a < b & c")
	if strings.Contains(got, "a < b") {
		t.Fatalf("text not escaped:\n%s", got)
	}
	if !strings.Contains(got, "a &lt; b &amp; c") {
		t.Fatalf("expected escaped text:\n%s", got)
	}
}

func TestLogSenderNeverFails(t *testing.T) {
	s := NewLogSender(logx.Nop())
	id, err := s.Send(context.Background(), Message{
		From:    "A <a@example.com>",
		To:      "to@example.com",
		Subject: "s",
		Text:    "b",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "" {
		t.Fatalf("id = %q, want empty for dry run", id)
	}
}
