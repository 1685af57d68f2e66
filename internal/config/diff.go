package config

import (
	logx "penpal/pkg/logx"
	"reflect"
	"sort"
	"strings"
)

// SummarizeConfigChange compares two configs and reports the changed
// section names, log-safe attrs describing the new values (secrets are
// reduced to set/unset), and whether the resolved account set differs,
// which is what forces a scheduler restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "timezone")
		attrs = append(attrs, logx.String("timezone", strings.TrimSpace(newCfg.Timezone)))
	}

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// AI (never log the key)
	if strings.TrimSpace(oldCfg.AI.BaseURL) != strings.TrimSpace(newCfg.AI.BaseURL) ||
		strings.TrimSpace(oldCfg.AI.Model) != strings.TrimSpace(newCfg.AI.Model) ||
		strings.TrimSpace(oldCfg.AI.Timeout) != strings.TrimSpace(newCfg.AI.Timeout) ||
		strings.TrimSpace(oldCfg.AI.DefaultPrompt) != strings.TrimSpace(newCfg.AI.DefaultPrompt) ||
		(strings.TrimSpace(oldCfg.AI.APIKey) != "") != (strings.TrimSpace(newCfg.AI.APIKey) != "") {
		changed = append(changed, "ai")
		attrs = append(attrs,
			logx.String("ai.base_url", strings.TrimSpace(newCfg.AI.BaseURL)),
			logx.String("ai.model", strings.TrimSpace(newCfg.AI.Model)),
			logx.Bool("ai.key_set", strings.TrimSpace(newCfg.AI.APIKey) != ""),
		)
	}

	// Email (never log the key)
	if strings.TrimSpace(oldCfg.Email.Provider) != strings.TrimSpace(newCfg.Email.Provider) ||
		strings.TrimSpace(oldCfg.Email.DefaultDomain) != strings.TrimSpace(newCfg.Email.DefaultDomain) ||
		strings.TrimSpace(oldCfg.Email.DefaultFromName) != strings.TrimSpace(newCfg.Email.DefaultFromName) ||
		strings.TrimSpace(oldCfg.Email.Timeout) != strings.TrimSpace(newCfg.Email.Timeout) ||
		(strings.TrimSpace(oldCfg.Email.APIKey) != "") != (strings.TrimSpace(newCfg.Email.APIKey) != "") {
		changed = append(changed, "email")
		attrs = append(attrs,
			logx.String("email.provider", strings.TrimSpace(newCfg.Email.Provider)),
			logx.Bool("email.key_set", strings.TrimSpace(newCfg.Email.APIKey) != ""),
		)
	}

	// Alert (never log token; chat only as set/unset)
	oldA := derefAlert(oldCfg.Alert)
	newA := derefAlert(newCfg.Alert)
	oldA.Token, newA.Token = "", ""
	tokenFlip := (oldCfg.Alert != nil && strings.TrimSpace(oldCfg.Alert.Token) != "") !=
		(newCfg.Alert != nil && strings.TrimSpace(newCfg.Alert.Token) != "")
	if (oldCfg.Alert != nil) != (newCfg.Alert != nil) || !reflect.DeepEqual(oldA, newA) || tokenFlip {
		changed = append(changed, "alert")
		attrs = append(attrs,
			logx.Bool("alert.present", newCfg.Alert != nil),
			logx.Bool("alert.enabled", newA.Enabled),
			logx.Bool("alert.notify_success", newA.NotifySuccess == nil || *newA.NotifySuccess),
			logx.Bool("alert.chat_set", strings.TrimSpace(newA.ChatID) != ""),
		)
	}

	// Scheduler
	if strings.TrimSpace(oldCfg.Scheduler.DispatchTimeout) != strings.TrimSpace(newCfg.Scheduler.DispatchTimeout) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.dispatch_timeout", strings.TrimSpace(newCfg.Scheduler.DispatchTimeout)),
		)
	}

	// Storage (path only as set/unset)
	oldS := derefStorage(oldCfg.Storage)
	newS := derefStorage(newCfg.Storage)
	if strings.TrimSpace(oldS.Driver) != strings.TrimSpace(newS.Driver) ||
		strings.TrimSpace(oldS.BusyTimeout) != strings.TrimSpace(newS.BusyTimeout) ||
		(strings.TrimSpace(oldS.Path) != "") != (strings.TrimSpace(newS.Path) != "") {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	// Accounts: compare the resolved set, so cosmetic raw changes that
	// resolve identically don't restart the scheduler.
	oldAccounts, _ := ResolveAccounts(oldCfg)
	newAccounts, _ := ResolveAccounts(newCfg)
	accountsChanged := !reflect.DeepEqual(oldAccounts, newAccounts)
	if accountsChanged {
		changed = append(changed, "accounts")
		attrs = append(attrs, logx.Int("accounts.count", len(newAccounts)))
	}

	sort.Strings(changed)
	return changed, attrs, accountsChanged
}

func derefAlert(a *AlertConfig) AlertConfig {
	if a == nil {
		return AlertConfig{}
	}
	return *a
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}
