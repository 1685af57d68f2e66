package config

import (
	"strings"
	"testing"
)

func TestResolveAccounts(t *testing.T) {
	base := func() *Config {
		return &Config{
			AI:    AIConfig{DefaultPrompt: "write a short friendly note"},
			Email: EmailConfig{DefaultDomain: "mail.example.com", DefaultFromName: "Daily Letters"},
		}
	}

	tests := []struct {
		name       string
		mutate     func(*Config)
		wantCount  int
		wantIssues int
	}{
		{
			name: "full entry",
			mutate: func(c *Config) {
				c.Accounts = []AccountRaw{{
					Name: "alice", FromEmail: "alice@example.com", FromName: "Alice",
					ToEmail: "to@example.com", Cron: "30 8 * * *", Prompt: "p",
				}}
			},
			wantCount: 1,
		},
		{
			name: "missing to_email excluded",
			mutate: func(c *Config) {
				c.Accounts = []AccountRaw{
					{Name: "bad", Cron: "30 8 * * *"},
					{Name: "good", ToEmail: "to@example.com", Cron: "30 8 * * *"},
				}
			},
			wantCount:  1,
			wantIssues: 1,
		},
		{
			name: "malformed cron excluded",
			mutate: func(c *Config) {
				c.Accounts = []AccountRaw{
					{Name: "bad", ToEmail: "to@example.com", Cron: "61 8 * * *"},
					{Name: "good", ToEmail: "to@example.com", Cron: "0 8 * * *"},
				}
			},
			wantCount:  1,
			wantIssues: 1,
		},
		{
			name: "missing cron excluded",
			mutate: func(c *Config) {
				c.Accounts = []AccountRaw{{Name: "bad", ToEmail: "to@example.com"}}
			},
			wantCount:  0,
			wantIssues: 1,
		},
		{
			name: "prompt required when no default",
			mutate: func(c *Config) {
				c.AI.DefaultPrompt = ""
				c.Accounts = []AccountRaw{{Name: "a", ToEmail: "to@example.com", Cron: "0 8 * * *"}}
			},
			wantCount:  0,
			wantIssues: 1,
		},
		{
			name: "from_email required when no default domain",
			mutate: func(c *Config) {
				c.Email.DefaultDomain = ""
				c.Accounts = []AccountRaw{{Name: "a", ToEmail: "to@example.com", Cron: "0 8 * * *"}}
			},
			wantCount:  0,
			wantIssues: 1,
		},
		{
			name: "duplicate name excluded",
			mutate: func(c *Config) {
				c.Accounts = []AccountRaw{
					{Name: "same", ToEmail: "a@example.com", Cron: "0 8 * * *"},
					{Name: "same", ToEmail: "b@example.com", Cron: "0 9 * * *"},
				}
			},
			wantCount:  1,
			wantIssues: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			accounts, issues := ResolveAccounts(cfg)
			if len(accounts) != tt.wantCount {
				t.Fatalf("accounts = %d, want %d (issues: %v)", len(accounts), tt.wantCount, issues)
			}
			if len(issues) != tt.wantIssues {
				t.Fatalf("issues = %d, want %d (%v)", len(issues), tt.wantIssues, issues)
			}
		})
	}
}

func TestResolveAccountsDefaults(t *testing.T) {
	cfg := &Config{
		AI:    AIConfig{DefaultPrompt: "default prompt"},
		Email: EmailConfig{DefaultDomain: "mail.example.com", DefaultFromName: "Daily Letters"},
		Accounts: []AccountRaw{
			{ToEmail: "to@example.com", Cron: "0 8 * * *"},
		},
	}
	accounts, issues := ResolveAccounts(cfg)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if len(accounts) != 1 {
		t.Fatalf("accounts = %d, want 1", len(accounts))
	}
	a := accounts[0]
	if a.Name != "account_0" {
		t.Fatalf("Name = %q, want account_0", a.Name)
	}
	if a.Prompt != "default prompt" {
		t.Fatalf("Prompt = %q, want default", a.Prompt)
	}
	if a.FromName != "Daily Letters" {
		t.Fatalf("FromName = %q, want default from name", a.FromName)
	}
	if !strings.HasSuffix(a.FromEmail, "@mail.example.com") {
		t.Fatalf("FromEmail = %q, want derived @mail.example.com address", a.FromEmail)
	}
}

func TestDeriveFromEmailStable(t *testing.T) {
	a := deriveFromEmail("My Account", "mail.example.com")
	b := deriveFromEmail("My Account", "mail.example.com")
	if a != b {
		t.Fatalf("derived address not stable: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "my-account-") {
		t.Fatalf("derived address = %q, want my-account- prefix", a)
	}
	c := deriveFromEmail("Other Account", "mail.example.com")
	if a == c {
		t.Fatalf("different names derived the same address: %q", a)
	}
}
