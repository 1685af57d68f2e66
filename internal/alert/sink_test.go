package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logx "penpal/pkg/logx"

	"penpal/internal/domain"

	"github.com/google/uuid"
)

func testReceipt() domain.SendReceipt {
	return domain.SendReceipt{
		FireID:    uuid.New(),
		Account:   "daily-alice",
		To:        "bob@example.com",
		Subject:   "[daily] Thinking of you <3",
		MessageID: "msg-123",
		SentAt:    time.Now(),
	}
}

func testFire() domain.FireEvent {
	return domain.NewFireEvent(domain.Account{
		Name:    "daily-alice",
		ToEmail: "bob@example.com",
	}, time.Now())
}

func TestSinkFailureSendsAlert(t *testing.T) {
	tr := &fakeTransport{ch: make(chan string, 4)}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 100}, tr, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer stopService(t, svc)

	sink := NewSink(svc, logx.Nop())
	sink.DispatchFailed(testFire(), errors.New("smtp said <no>"))

	got := waitText(t, tr.ch)
	if !strings.HasPrefix(got, "❌") {
		t.Fatalf("failure alert = %q, want ❌ prefix", got)
	}
	if !strings.Contains(got, "daily-alice") {
		t.Fatalf("failure alert missing account name: %q", got)
	}
	if !strings.Contains(got, "&lt;no&gt;") {
		t.Fatalf("error text not escaped: %q", got)
	}
	if strings.Contains(got, "<no>") {
		t.Fatalf("raw error markup leaked into alert: %q", got)
	}
}

func TestSinkSuccessSendsWhenEnabled(t *testing.T) {
	tr := &fakeTransport{ch: make(chan string, 4)}
	svc := New(Config{Enabled: true, NotifySuccess: true, Workers: 1, RatePerSec: 100}, tr, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer stopService(t, svc)

	sink := NewSink(svc, logx.Nop())
	sink.DispatchSucceeded(testReceipt())

	got := waitText(t, tr.ch)
	if !strings.HasPrefix(got, "✅") {
		t.Fatalf("success alert = %q, want ✅ prefix", got)
	}
	if !strings.Contains(got, "bob@example.com") {
		t.Fatalf("success alert missing recipient: %q", got)
	}
	if !strings.Contains(got, "&lt;3") {
		t.Fatalf("subject not escaped: %q", got)
	}
}

func TestSinkSuccessSuppressedByDefault(t *testing.T) {
	tr := &fakeTransport{ch: make(chan string, 4)}
	svc := New(Config{Enabled: true, NotifySuccess: false, Workers: 1, RatePerSec: 100}, tr, logx.Nop(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	sink := NewSink(svc, logx.Nop())
	sink.DispatchSucceeded(testReceipt())
	stopService(t, svc)

	if n := tr.sentCount(); n != 0 {
		t.Fatalf("sent %d success alerts, want 0", n)
	}
}

func TestSinkNilServiceNeverPanics(t *testing.T) {
	sink := NewSink(nil, logx.Nop())
	sink.DispatchSucceeded(testReceipt())
	sink.DispatchFailed(testFire(), errors.New("boom"))
}

func TestSinkDisabledServiceStaysQuiet(t *testing.T) {
	tr := &fakeTransport{ch: make(chan string, 4)}
	svc := New(Config{Enabled: false}, tr, logx.Nop(), nil, nil)

	sink := NewSink(svc, logx.Nop())
	sink.DispatchSucceeded(testReceipt())
	sink.DispatchFailed(testFire(), errors.New("boom"))

	if n := tr.sentCount(); n != 0 {
		t.Fatalf("sent %d alerts from disabled service, want 0", n)
	}
}

func TestFormatFailureNilError(t *testing.T) {
	got := formatFailure(testFire(), nil)
	if !strings.Contains(got, "unknown error") {
		t.Fatalf("formatFailure(nil) = %q, want unknown error placeholder", got)
	}
}

func TestFormatTagsBalanced(t *testing.T) {
	// Only <b> tags added by the formatter itself may appear.
	for _, text := range []string{
		formatSuccess(testReceipt()),
		formatFailure(testFire(), errors.New("a < b > c")),
	} {
		if strings.Count(text, "<b>") != strings.Count(text, "</b>") {
			t.Fatalf("unbalanced bold tags in %q", text)
		}
		stripped := strings.ReplaceAll(strings.ReplaceAll(text, "<b>", ""), "</b>", "")
		if strings.ContainsAny(stripped, "<>") {
			t.Fatalf("unexpected markup outside bold tags: %q", text)
		}
	}
}
