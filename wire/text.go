package wire

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// Truncate trims s and cuts it to max runes, appending Ellipsis when it was
// cut. Blank input yields "".
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + Ellipsis
}

// Clip cuts s so the result including Ellipsis is at most max runes. Unlike
// Truncate it does not trim.
func Clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 0 {
		return ""
	}
	if max <= len(Ellipsis) {
		return string(r[:max])
	}
	return string(r[:max-len(Ellipsis)]) + Ellipsis
}

// ExtractText returns the first text-bearing value of a message:
// a plain string, {content: string}, {text: string}, or the first
// {content: [{text: string}, ...]} block. Unknown shapes yield "".
func ExtractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	return textOf(v)
}

func textOf(v any) string {
	switch m := v.(type) {
	case string:
		return m
	case map[string]any:
		if s, ok := m["content"].(string); ok {
			return s
		}
		if s, ok := m["text"].(string); ok {
			return s
		}
		if blocks, ok := m["content"].([]any); ok {
			for _, b := range blocks {
				if block, ok := b.(map[string]any); ok {
					if s, ok := block["text"].(string); ok {
						return s
					}
				}
			}
		}
	}
	return ""
}
