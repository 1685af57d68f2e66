package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks a config is usable: timezone loads, durations parse,
// required secrets are present for enabled components, and at least one
// account resolves. Used at startup and as the reload validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return errors.New("ai.api_key is required (AI_API_KEY)")
	}
	if _, err := ParseDuration("ai.timeout", cfg.AI.Timeout); err != nil {
		return err
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Email.Provider))
	switch provider {
	case "", "resend":
		if strings.TrimSpace(cfg.Email.APIKey) == "" {
			return errors.New("email.api_key is required (RESEND_API_KEY)")
		}
	case "log":
	default:
		return fmt.Errorf("email.provider: unknown provider %q", cfg.Email.Provider)
	}
	if _, err := ParseDuration("email.timeout", cfg.Email.Timeout); err != nil {
		return err
	}

	if _, err := ParseDuration("scheduler.dispatch_timeout", cfg.Scheduler.DispatchTimeout); err != nil {
		return err
	}

	if a := cfg.Alert; a != nil && a.Enabled {
		if strings.TrimSpace(a.Token) == "" {
			return errors.New("alert.token is required when alert is enabled (TG_BOT_TOKEN)")
		}
		if strings.TrimSpace(a.ChatID) == "" {
			return errors.New("alert.chat_id is required when alert is enabled (TG_CHAT_ID)")
		}
		for path, raw := range map[string]string{
			"alert.retry_base":      a.RetryBase,
			"alert.retry_max_delay": a.RetryMaxDelay,
			"alert.dedup_window":    a.DedupWindow,
		} {
			if _, err := ParseDuration(path, raw); err != nil {
				return err
			}
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDuration("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}

	accounts, issues := ResolveAccounts(cfg)
	if len(accounts) == 0 {
		if len(issues) == 0 {
			return errors.New("at least one account is required (ACCOUNTS)")
		}
		parts := make([]string, 0, len(issues))
		for _, is := range issues {
			parts = append(parts, is.String())
		}
		return fmt.Errorf("no usable accounts: %s", strings.Join(parts, "; "))
	}
	return nil
}
