// Package oracle talks to the reasoning services that turn receipt text into
// JSON-shaped guesses. Replies are free text; FindJSON locates the payload.
package oracle

import (
	"context"
	"strings"
)

// Oracle is a reasoning service that answers a prompt with free text
type Oracle interface {
	// Complete sends prompt and returns the raw reply text
	Complete(ctx context.Context, prompt string) (string, error)
	// Close releases the underlying client
	Close() error
}

// FindJSON returns the first balanced {...} span in reply. Braces inside
// JSON strings are ignored. A brace that never closes is skipped and the
// search resumes at the next one. ok is false when no complete span exists.
func FindJSON(reply string) (string, bool) {
	for offset := 0; offset < len(reply); {
		i := strings.IndexByte(reply[offset:], '{')
		if i == -1 {
			return "", false
		}
		start := offset + i
		if end, ok := balancedEnd(reply, start); ok {
			return reply[start:end], true
		}
		offset = start + 1
	}
	return "", false
}

// balancedEnd scans from the '{' at start and returns the index just past
// its matching '}'
func balancedEnd(reply string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(reply); i++ {
		c := reply[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// stripCodeFence removes markdown code fences some models wrap replies in
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
