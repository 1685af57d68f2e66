package config

import (
	"fmt"
	"hash/fnv"
	"strings"

	"penpal/internal/cronexpr"
	"penpal/internal/domain"
)

// Issue describes one account that was excluded during resolution.
type Issue struct {
	Account string
	Reason  string
}

func (i Issue) String() string { return i.Account + ": " + i.Reason }

// ResolveAccounts turns raw account entries into usable accounts.
//
// A bad entry (missing fields, malformed cron) is excluded and reported
// as an issue; the remaining entries are unaffected. Callers decide
// whether zero usable accounts is fatal (Validate does).
func ResolveAccounts(cfg *Config) ([]domain.Account, []Issue) {
	if cfg == nil || len(cfg.Accounts) == 0 {
		return nil, nil
	}

	accounts := make([]domain.Account, 0, len(cfg.Accounts))
	var issues []Issue
	seen := make(map[string]struct{}, len(cfg.Accounts))

	for i, raw := range cfg.Accounts {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			name = fmt.Sprintf("account_%d", i)
		}
		if _, dup := seen[name]; dup {
			issues = append(issues, Issue{Account: name, Reason: "duplicate account name"})
			continue
		}

		toEmail := strings.TrimSpace(raw.ToEmail)
		if toEmail == "" {
			issues = append(issues, Issue{Account: name, Reason: "to_email is required"})
			continue
		}

		cronStr := strings.TrimSpace(raw.Cron)
		if cronStr == "" {
			issues = append(issues, Issue{Account: name, Reason: "cron is required"})
			continue
		}
		if _, err := cronexpr.Parse(cronStr); err != nil {
			issues = append(issues, Issue{Account: name, Reason: "invalid cron: " + err.Error()})
			continue
		}

		prompt := strings.TrimSpace(raw.Prompt)
		if prompt == "" {
			prompt = strings.TrimSpace(cfg.AI.DefaultPrompt)
		}
		if prompt == "" {
			issues = append(issues, Issue{Account: name, Reason: "ai_prompt is required (no default_prompt configured)"})
			continue
		}

		fromEmail := strings.TrimSpace(raw.FromEmail)
		if fromEmail == "" {
			domainName := strings.TrimSpace(cfg.Email.DefaultDomain)
			if domainName == "" {
				issues = append(issues, Issue{Account: name, Reason: "from_email is required (no default_domain configured)"})
				continue
			}
			fromEmail = deriveFromEmail(name, domainName)
		}

		fromName := strings.TrimSpace(raw.FromName)
		if fromName == "" {
			fromName = strings.TrimSpace(cfg.Email.DefaultFromName)
		}
		if fromName == "" {
			fromName = name
		}

		seen[name] = struct{}{}
		accounts = append(accounts, domain.Account{
			Name:          name,
			FromEmail:     fromEmail,
			FromName:      fromName,
			ToEmail:       toEmail,
			CronExpr:      cronStr,
			Prompt:        prompt,
			SubjectPrefix: strings.TrimSpace(raw.SubjectPrefix),
		})
	}
	return accounts, issues
}

// deriveFromEmail builds a stable pseudonymous address for an account
// that has no from_email. Same name, same address, across restarts.
func deriveFromEmail(name, domainName string) string {
	slug := slugify(name)
	if slug == "" {
		slug = "sender"
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("%s-%06x@%s", slug, h.Sum64()&0xffffff, domainName)
}

func slugify(s string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
