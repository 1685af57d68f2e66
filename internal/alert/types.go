package alert

import "time"

// Config controls the async alert pipeline.
type Config struct {
	Enabled bool

	// NotifySuccess sends an alert for successful dispatches too.
	NotifySuccess bool

	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// withDefaults fills the zero values an operator left out.
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	if c.DedupMaxEntries <= 0 {
		c.DedupMaxEntries = 1000
	}
	return c
}

// Message is one alert to deliver. Text is Telegram-safe HTML.
type Message struct {
	Kind    string // "success" or "failure"
	Account string
	Text    string
}

// Event records one alert lifecycle step for bus subscribers, small
// enough to log or serialize wholesale.
type Event struct {
	Kind    string    `json:"kind"`
	Account string    `json:"account,omitempty"`
	Key     string    `json:"key"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}
