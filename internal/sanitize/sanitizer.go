package sanitize

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Sanitizer provides methods for sanitizing sensitive data from text
type Sanitizer struct {
	patterns []Pattern
	literals []string
}

// NewSanitizer creates a new Sanitizer with default patterns
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: GetSecretPatterns(),
	}
}

// NewSanitizerWithPatterns creates a Sanitizer with custom patterns
func NewSanitizerWithPatterns(patterns []Pattern) *Sanitizer {
	return &Sanitizer{
		patterns: patterns,
	}
}

// WithLiterals returns a copy that also redacts each exact, non-empty
// string, such as a configured password.
func (s *Sanitizer) WithLiterals(literals ...string) *Sanitizer {
	cp := &Sanitizer{patterns: s.patterns, literals: append([]string(nil), s.literals...)}
	for _, l := range literals {
		if l != "" {
			cp.literals = append(cp.literals, l)
		}
	}
	return cp
}

// Sanitize removes sensitive data from the input string
// Returns the sanitized string with secrets replaced by placeholders
func (s *Sanitizer) Sanitize(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, l := range s.literals {
		result = strings.ReplaceAll(result, l, "[REDACTED]")
	}
	for _, p := range s.patterns {
		result = p.Regex.ReplaceAllString(result, p.Replacement)
	}
	return result
}

// DefaultSanitizer is a package-level sanitizer for convenience
var DefaultSanitizer = NewSanitizer()

// Sanitize uses the default sanitizer to sanitize input
func Sanitize(input string) string {
	return DefaultSanitizer.Sanitize(input)
}

// Hook is a logrus hook that redacts the message and string or error
// fields of every entry.
type Hook struct {
	Sanitizer *Sanitizer
}

// NewHook creates a Hook; a nil sanitizer uses DefaultSanitizer.
func NewHook(s *Sanitizer) *Hook {
	if s == nil {
		s = DefaultSanitizer
	}
	return &Hook{Sanitizer: s}
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *Hook) Fire(e *logrus.Entry) error {
	e.Message = h.Sanitizer.Sanitize(e.Message)
	for k, v := range e.Data {
		switch val := v.(type) {
		case string:
			e.Data[k] = h.Sanitizer.Sanitize(val)
		case error:
			e.Data[k] = redactedError{msg: h.Sanitizer.Sanitize(val.Error()), err: val}
		}
	}
	return nil
}

// redactedError keeps the wrapped chain for errors.Is but prints redacted.
type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }
