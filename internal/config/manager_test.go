package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{
		"timezone": "UTC",
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
		"ai": {"model": "gpt-4o-mini"},
		"email": {"provider": "log"},
		"scheduler": {"dispatch_timeout": "90s"},
		"accounts": [
			{"name": "a", "from_email": "a@example.com", "from_name": "A",
			 "to_email": "to@example.com", "cron": "30 8 * * *", "ai_prompt": "p",
			 "subject_prefix": "[daily] "}
		]
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("Timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.Scheduler.DispatchTimeout != "90s" {
		t.Fatalf("DispatchTimeout = %q, want 90s", cfg.Scheduler.DispatchTimeout)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Prompt != "p" {
		t.Fatalf("accounts not decoded: %+v", cfg.Accounts)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get returned a different config")
	}
}

func TestParseYAML(t *testing.T) {
	path := writeConfigFile(t, "config.yaml", `
timezone: Asia/Shanghai
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
ai:
  model: gpt-4o-mini
email:
  provider: log
scheduler:
  dispatch_timeout: 2m
accounts:
  - name: a
    from_email: a@example.com
    from_name: A
    to_email: to@example.com
    cron: "30 8 * * *"
    ai_prompt: p
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse yaml: %v", err)
	}
	if cfg.Timezone != "Asia/Shanghai" {
		t.Fatalf("Timezone = %q, want Asia/Shanghai", cfg.Timezone)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Cron != "30 8 * * *" {
		t.Fatalf("accounts not decoded: %+v", cfg.Accounts)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{"timezone": "UTC", "surprise": true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{"timezone": "UTC"}{"timezone": "UTC"}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatalf("expected error for trailing data")
	}
}

func TestSubscribeDropOldest(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Timezone: "UTC"}
	second := &Config{Timezone: "Asia/Shanghai"}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got.Timezone != "Asia/Shanghai" {
		t.Fatalf("subscriber got %q, want latest config", got.Timezone)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra config: %+v", extra)
	default:
	}
}
