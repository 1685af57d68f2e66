package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Env holds the environment-variable surface. Secrets and account
// definitions arrive via env; a config file is optional.
type Env struct {
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	AIAPIKey     string `envconfig:"AI_API_KEY"`
	AIAPIBase    string `envconfig:"AI_API_BASE" default:"https://api.openai.com/v1"`
	AIModel      string `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Timezone     string `envconfig:"TZ" default:"Asia/Shanghai"`
	TGBotToken   string `envconfig:"TG_BOT_TOKEN"`
	TGChatID     string `envconfig:"TG_CHAT_ID"`
	// Accounts is a JSON array of account objects (see AccountRaw).
	Accounts string `envconfig:"ACCOUNTS"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadEnv reads the environment into Env.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return e, err
	}
	return e, nil
}

// FromEnv builds a complete Config from the environment alone
// (no config file). ACCOUNTS must parse as a JSON array.
func FromEnv(e Env) (*Config, error) {
	accounts, err := parseAccountsJSON(e.Accounts)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Timezone: e.Timezone,
		Logging: LoggingConfig{
			Level:   e.LogLevel,
			Console: true,
		},
		AI: AIConfig{
			APIKey:  e.AIAPIKey,
			BaseURL: e.AIAPIBase,
			Model:   e.AIModel,
		},
		Email: EmailConfig{
			APIKey: e.ResendAPIKey,
		},
		Accounts: accounts,
	}
	if e.TGBotToken != "" && e.TGChatID != "" {
		cfg.Alert = &AlertConfig{
			Enabled: true,
			Token:   e.TGBotToken,
			ChatID:  e.TGChatID,
		}
	}
	return cfg, nil
}

// FillFromEnv fills blank secret/endpoint fields from the environment so
// a config file can omit keys entirely.
func (c *Config) FillFromEnv(e Env) {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.Email.APIKey) == "" {
		c.Email.APIKey = e.ResendAPIKey
	}
	if strings.TrimSpace(c.AI.APIKey) == "" {
		c.AI.APIKey = e.AIAPIKey
	}
	if strings.TrimSpace(c.AI.BaseURL) == "" {
		c.AI.BaseURL = e.AIAPIBase
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		c.AI.Model = e.AIModel
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = e.Timezone
	}
	if c.Alert != nil {
		if strings.TrimSpace(c.Alert.Token) == "" {
			c.Alert.Token = e.TGBotToken
		}
		if strings.TrimSpace(c.Alert.ChatID) == "" {
			c.Alert.ChatID = e.TGChatID
		}
	} else if e.TGBotToken != "" && e.TGChatID != "" {
		c.Alert = &AlertConfig{Enabled: true, Token: e.TGBotToken, ChatID: e.TGChatID}
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = e.LogLevel
	}
}

func parseAccountsJSON(raw string) ([]AccountRaw, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var accounts []AccountRaw
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("ACCOUNTS: invalid JSON array: %w", err)
	}
	return accounts, nil
}
