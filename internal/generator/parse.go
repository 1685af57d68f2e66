package generator

import (
	"encoding/json"
	"errors"
	"strings"
)

const fallbackSubject = "Just saying hi"

// parseContent interprets the model's reply. The expected shape is a bare
// JSON object {"subject","body"}; models sometimes wrap it in markdown
// fences (stripped) or ignore the format entirely (the raw text then
// becomes the body under a fallback subject). An empty body is an error
// either way.
func parseContent(raw string) (Content, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Content{}, errors.New("model returned empty content")
	}

	cleaned := strings.TrimSpace(stripFences(raw))
	if cleaned == "" {
		return Content{}, errors.New("model returned only code fences")
	}

	var parsed struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// Not the requested shape; treat the whole reply as the body.
		return Content{Subject: fallbackSubject, Body: cleaned}, nil
	}

	body := strings.TrimSpace(parsed.Body)
	if body == "" {
		return Content{}, errors.New("model returned empty body")
	}
	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		subject = fallbackSubject
	}
	return Content{Subject: subject, Body: body}, nil
}

// stripFences drops markdown fence lines when the reply starts with one.
func stripFences(s string) string {
	if !strings.HasPrefix(strings.TrimSpace(s), "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
