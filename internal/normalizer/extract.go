package normalizer

import (
	"encoding/json"
	"strings"
)

// extractObject locates and parses a JSON-like object inside raw text. The
// object may be wrapped in prose or markdown code fencing and may use single
// quotes instead of double quotes.
func extractObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	// Fast path: the whole payload is the object.
	if obj, ok := parseObject(text); ok {
		return obj, true
	}

	// Markdown fencing: take the first fenced block's content.
	if fenced, ok := stripFence(text); ok {
		if obj, ok := parseObject(fenced); ok {
			return obj, true
		}
		text = fenced
	}

	// Prose wrapping: take the first balanced {...} group.
	if candidate, ok := balancedObject(text); ok {
		if obj, ok := parseObject(candidate); ok {
			return obj, true
		}
	}
	return nil, false
}

// parseObject parses candidate text as a JSON object, retrying with
// single-quote repair.
func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, true
	}
	if err := json.Unmarshal([]byte(repairQuotes(s)), &obj); err == nil {
		return obj, true
	}
	return nil, false
}

func stripFence(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && nl < 10 {
		// Skip a language tag like ```json.
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// balancedObject returns the first top-level {...} group, tracking string
// state so braces inside quoted values do not confuse the depth count.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	var quote byte
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case ch == '\\':
				i++
			case ch == quote:
				inString = false
			}
			continue
		}
		switch ch {
		case '"', '\'':
			inString = true
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// repairQuotes rewrites single-quoted strings as double-quoted ones.
// Apostrophes inside a single-quoted string survive: a quote only closes
// the string when the next non-space character is structural JSON.
func repairQuotes(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case ch == '\\' && i+1 < len(s):
				out.WriteByte(ch)
				i++
				out.WriteByte(s[i])
			case ch == quote && (quote == '"' || closesString(s, i+1)):
				inString = false
				out.WriteByte('"')
			case ch == '"' && quote == '\'':
				out.WriteString(`\"`)
			default:
				out.WriteByte(ch)
			}
			continue
		}
		switch ch {
		case '"', '\'':
			inString = true
			quote = ch
			out.WriteByte('"')
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}

// closesString reports whether a quote at this position plausibly ends a
// string: the next non-space character must be JSON structure or the end.
func closesString(s string, from int) bool {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case ':', ',', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}
