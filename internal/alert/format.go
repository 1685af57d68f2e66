package alert

import (
	"html"

	"penpal/internal/domain"
)

// Alert texts are Telegram HTML. Dynamic parts (subjects, addresses,
// error strings) are escaped; tags are only ever added here.

func esc(s string) string { return html.EscapeString(s) }

func bold(s string) string { return "<b>" + esc(s) + "</b>" }

func formatSuccess(r domain.SendReceipt) string {
	return "✅ " + bold("Email sent") + "\n" +
		"📋 Account: " + esc(r.Account) + "\n" +
		"📮 To: " + esc(r.To) + "\n" +
		"📝 Subject: " + esc(r.Subject)
}

func formatFailure(fire domain.FireEvent, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return "❌ " + bold("Email dispatch failed") + "\n" +
		"📋 Account: " + esc(fire.Account.Name) + "\n" +
		"📮 To: " + esc(fire.Account.ToEmail) + "\n" +
		"⚠️ Error: " + esc(msg)
}
