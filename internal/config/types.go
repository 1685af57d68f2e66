package config

type Config struct {
	// Timezone applies to every account's schedule (IANA name).
	Timezone string `json:"timezone,omitempty"`

	Logging LoggingConfig `json:"logging"`
	AI      AIConfig      `json:"ai"`
	Email   EmailConfig   `json:"email"`

	Alert   *AlertConfig   `json:"alert,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`

	Scheduler SchedulerConfig `json:"scheduler"`

	Accounts []AccountRaw `json:"accounts"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AIConfig controls the content generation backend (OpenAI-compatible
// chat completions).
type AIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"` // default: https://api.openai.com/v1
	Model   string `json:"model,omitempty"`    // default: gpt-4o-mini

	// Timeout is a Go duration string (e.g. "30s", "2m") for one API call.
	Timeout string `json:"timeout,omitempty"`

	// DefaultPrompt is used for accounts that omit ai_prompt.
	DefaultPrompt string `json:"default_prompt,omitempty"`
}

// EmailConfig controls the outbound email transport.
type EmailConfig struct {
	// Provider selects the transport: "resend" (default) or "log"
	// (writes the message to the log instead of sending; dry runs).
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"api_key,omitempty"`

	// DefaultDomain is used to derive a sender address for accounts
	// that omit from_email. Empty means from_email is required.
	DefaultDomain string `json:"default_domain,omitempty"`

	// DefaultFromName is used for accounts that omit from_name.
	// Empty falls back to the account name.
	DefaultFromName string `json:"default_from_name,omitempty"`

	// Timeout is a Go duration string for one send.
	Timeout string `json:"timeout,omitempty"`
}

// AlertConfig controls the async Telegram alert pipeline.
//
// Durations here are Go duration strings ("500ms", "10s", "1m"). A nil
// section disables alerting unless both TG_BOT_TOKEN and TG_CHAT_ID are
// set in the environment.
type AlertConfig struct {
	Enabled bool `json:"enabled"`

	Token string `json:"token,omitempty"`
	// ChatID is a numeric chat ID or an "@channel" username.
	ChatID   string `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`

	// NotifySuccess is a pointer so "omitted" (default true) can be
	// distinguished from an explicit false.
	NotifySuccess *bool `json:"notify_success,omitempty"`

	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// StorageConfig controls the optional persistence layer (alert dedup).
//
// Example:
//
//	"storage": { "driver": "file", "path": "./penpal_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only; Go duration string
}

// SchedulerConfig controls dispatch execution.
type SchedulerConfig struct {
	// DispatchTimeout bounds one generate+send cycle.
	// Go duration string; default "2m".
	DispatchTimeout string `json:"dispatch_timeout,omitempty"`
}

// AccountRaw is one account as configured (file or ACCOUNTS env JSON).
// Resolution into a usable account happens in ResolveAccounts.
type AccountRaw struct {
	Name          string `json:"name"`
	FromEmail     string `json:"from_email"`
	FromName      string `json:"from_name"`
	ToEmail       string `json:"to_email"`
	Cron          string `json:"cron"`
	Prompt        string `json:"ai_prompt"`
	SubjectPrefix string `json:"subject_prefix"`
}
