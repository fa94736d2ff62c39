// Package logging configures the shared logrus logger and hands out
// per-component entries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/runger/spoiler/internal/sanitize"
)

// Config controls where and how much is logged.
type Config struct {
	Level  string // debug, info, warn, error
	File   string // Empty logs to stderr
	Format string // text or json

	// Secrets are redacted verbatim from every entry, on top of the
	// built-in credential patterns.
	Secrets []string
}

var (
	mu      sync.Mutex
	base    = newBase()
	loggers = make(map[string]*logrus.Entry)
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.AddHook(sanitize.NewHook(nil))
	return l
}

// Setup configures the shared logger. SPOILER_LOG_LEVEL overrides
// cfg.Level. The returned closer releases the log file, if one was opened.
func Setup(cfg Config) (io.Closer, error) {
	mu.Lock()
	defer mu.Unlock()

	levelStr := cfg.Level
	if env := os.Getenv("SPOILER_LOG_LEVEL"); env != "" {
		levelStr = env
	}
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	base.SetLevel(level)
	hooks := make(logrus.LevelHooks)
	hooks.Add(sanitize.NewHook(sanitize.NewSanitizer().WithLiterals(cfg.Secrets...)))
	base.ReplaceHooks(hooks)

	switch strings.ToLower(cfg.Format) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		base.SetFormatter(&logrus.TextFormatter{DisableColors: cfg.File != "", FullTimestamp: true})
	}

	if cfg.File == "" {
		base.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	base.SetOutput(f)
	return f, nil
}

// NewLogger returns the entry for component, creating it on first use.
func NewLogger(component string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[component]; ok {
		return l
	}
	l := base.WithField("component", component)
	loggers[component] = l
	return l
}

// Discard returns an entry that drops everything.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
