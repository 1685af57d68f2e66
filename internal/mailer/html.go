package mailer

import (
	"html"
	"strings"
)

// htmlBody wraps plain text into a minimal HTML document so clients that
// prefer HTML render line breaks and readable typography.
func htmlBody(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n")
	b.WriteString(`<body style="font-family: -apple-system, 'Segoe UI', sans-serif; font-size: 15px; line-height: 1.8; color: #333; padding: 20px;">`)
	b.WriteString("\n")
	b.WriteString(escaped)
	b.WriteString("\n</body>\n</html>")
	return b.String()
}
