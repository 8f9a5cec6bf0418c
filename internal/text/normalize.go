// Package text prepares raw input before it reaches a SentencePiece engine.
package text

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// Normalize prepares user-supplied text for encoding. It unifies line endings
// to \n, applies NFKC, trims surrounding whitespace and rejects empty input.
func Normalize(s string) (string, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(NFKC(s))
	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

// NFKC applies compatibility composition, the default SentencePiece
// normalization rule.
func NFKC(s string) string {
	return norm.NFKC.String(s)
}

// Sentences splits s after each '.', '!' or '?', trimming every sentence and
// dropping empty ones. Text after the last terminator forms its own sentence.
func Sentences(s string) []string {
	var out []string

	start := 0
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		if part := strings.TrimSpace(s[start : i+1]); part != "" {
			out = append(out, part)
		}

		start = i + 1
	}

	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}

	return out
}
