package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNoObject is returned when a response holds no usable JSON object.
var ErrNoObject = errors.New("no structured object in response")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Structured is the multi-field result of a structured-mode call.
type Structured struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
	Excerpt string `json:"excerpt"`
	Summary string `json:"summary"`
}

// ParseStructured extracts the first well-formed object from raw that
// carries a title and content. Leading prose and code fences are ignored.
func ParseStructured(raw string) (*Structured, error) {
	text := stripFences(raw)
	var lastErr error
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchBrace(text, start)
		if end < 0 {
			break
		}
		var s Structured
		err := json.Unmarshal([]byte(text[start:end+1]), &s)
		if err == nil {
			s.trim()
			if err = validate.Struct(&s); err == nil {
				return &s, nil
			}
		}
		lastErr = err

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoObject, lastErr)
	}
	return nil, ErrNoObject
}

func (s *Structured) trim() {
	s.Title = strings.TrimSpace(s.Title)
	s.Content = strings.TrimSpace(s.Content)
	s.Excerpt = strings.TrimSpace(s.Excerpt)
	s.Summary = strings.TrimSpace(s.Summary)
}

// stripFences drops markdown code fence lines.
func stripFences(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// unwrapFence removes a code fence line opening or closing s. Fence lines
// inside the text are kept.
func unwrapFence(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside JSON strings, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				return i
			}
		}
	}
	return -1
}
