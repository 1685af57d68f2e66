package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	logx "penpal/pkg/logx"
	"strings"
	"time"
)

const systemPrompt = `You are an email writing assistant. Using the persona and scenario the user describes, write one natural, believable everyday email.

Requirements:
1. Sound like a real person writing to someone they know; no assistant tone.
2. Keep the length moderate (roughly 50-200 words).
3. Everyday topics are fine: recent life, weather, mood, small stories.
4. Every email must be different; vary topics and phrasing.
5. No template openings or sign-offs.

Reply strictly as JSON, with no markdown code fences:
{"subject": "a short, natural subject line", "body": "the plain-text email body"}`

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second

	temperature = 0.9
	maxTokens   = 500
)

// Config controls the chat-completions backend.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Content is one generated email.
type Content struct {
	Subject string
	Body    string
}

// Client talks to an OpenAI-compatible chat-completions API.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With(logx.String("comp", "generator")),
	}
}

// Generate produces one email for the given account prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (Content, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Content{}, errors.New("api key is empty")
	}

	type chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
	}{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Content{}, err
	}

	url := strings.TrimSuffix(strings.TrimSpace(c.cfg.BaseURL), "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Content{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.cfg.APIKey))

	c.log.Debug("requesting completion", logx.String("model", c.cfg.Model))

	resp, err := c.http.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	decErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode/100 != 2 {
		if out.Error != nil && out.Error.Message != "" {
			return Content{}, fmt.Errorf("chat completion failed: %s (http=%d)", out.Error.Message, resp.StatusCode)
		}
		return Content{}, fmt.Errorf("chat completion failed: http=%d", resp.StatusCode)
	}
	if decErr != nil {
		return Content{}, fmt.Errorf("chat completion response: %w", decErr)
	}
	if out.Error != nil && out.Error.Message != "" {
		return Content{}, fmt.Errorf("chat completion failed: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return Content{}, errors.New("chat completion returned no choices")
	}

	content, err := parseContent(out.Choices[0].Message.Content)
	if err != nil {
		return Content{}, err
	}
	c.log.Debug("completion parsed",
		logx.String("subject", content.Subject),
		logx.Int("body_len", len(content.Body)),
	)
	return content, nil
}
