package alert

import (
	"context"
	"errors"
	logx "penpal/pkg/logx"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const telegramTextLimit = 4000

// TelegramConfig configures the send-only Telegram transport.
type TelegramConfig struct {
	Token string
	// ChatID is a numeric chat ID or an "@channel" username.
	ChatID   string
	ThreadID int
	// Offline skips the getMe call on construction (tests).
	Offline bool
}

// chatRecipient lets a raw chat_id string (numeric or "@channel")
// address a chat without resolving it first.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// Telegram delivers alerts to one fixed chat, HTML parse mode,
// long messages split into chunks.
type Telegram struct {
	bot      *tele.Bot
	to       chatRecipient
	threadID int
	log      logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is required")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{
		bot:      b,
		to:       chatRecipient(strings.TrimSpace(cfg.ChatID)),
		threadID: cfg.ThreadID,
		log:      log.With(logx.String("comp", "alert.telegram")),
	}, nil
}

func (t *Telegram) SendText(ctx context.Context, text string) error {
	chunks := splitTelegramText(text, telegramTextLimit)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	for _, chunk := range chunks {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		opt := &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
			ThreadID:              t.threadID,
		}
		if _, err := t.bot.Send(t.to, chunk, opt); err != nil {
			return err
		}
	}
	return nil
}

// splitTelegramText breaks a long message into chunks Telegram will
// accept. Cuts land on newline boundaries where one is available and
// never inside an HTML tag.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	var out []string
	for start := 0; start < len(rs); {
		end := chunkEnd(rs, start, limit)
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

// chunkEnd picks the cut position for the chunk beginning at start: at
// most limit runes, pulled back to the last newline when one falls in
// the later part of the window, then pulled off an unclosed HTML tag.
func chunkEnd(rs []rune, start, limit int) int {
	end := start + limit
	if end >= len(rs) {
		return len(rs)
	}
	// A cut shorter than a third of the window is worse than an
	// arbitrary one.
	if nl := lastNewline(rs, start, end); nl-start >= limit/3 {
		end = nl + 1
	}
	if open := danglingTagOpen(rs, start, end); open >= start+2 {
		end = open
	}
	return end
}

// lastNewline returns the index of the last newline strictly inside
// (start, end), or start-1 when there is none.
func lastNewline(rs []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if rs[i] == '\n' {
			return i
		}
	}
	return start - 1
}

// danglingTagOpen returns the index of a '<' in [start, end) with no
// matching '>' before end, or -1.
func danglingTagOpen(rs []rune, start, end int) int {
	open := -1
	for i := start; i < end; i++ {
		switch rs[i] {
		case '<':
			open = i
		case '>':
			open = -1
		}
	}
	return open
}
