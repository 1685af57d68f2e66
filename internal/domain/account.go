package domain

import "strings"

// Account is one configured correspondence: who the mail appears to come
// from, who receives it, when it fires, and what persona writes it.
//
// Accounts are resolved once by configuration loading (defaults and
// pseudonymous senders filled in, cron validated) and never mutated after
// that, so they are safe to share across goroutines.
type Account struct {
	// Name identifies the account in logs and alerts. Operators are expected
	// to keep it unique within one config.
	Name string

	FromEmail string
	FromName  string
	ToEmail   string

	// CronExpr is a standard 5-field cron expression
	// (minute hour day-of-month month day-of-week).
	CronExpr string

	// Prompt is the persona/scenario fed to the generation backend.
	Prompt string

	// SubjectPrefix, when set, is prepended to the generated subject.
	SubjectPrefix string
}

// Sender renders the RFC-style sender identity ("Name <addr>" or bare addr).
func (a Account) Sender() string {
	name := strings.TrimSpace(a.FromName)
	addr := strings.TrimSpace(a.FromEmail)
	if name == "" {
		return addr
	}
	return name + " <" + addr + ">"
}
