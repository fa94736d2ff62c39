package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SPOILER_SOURCE_BASE_URL.
const EnvPrefix = "SPOILER_"

// Config represents the complete spoiler configuration.
type Config struct {
	Source SourceConfig `yaml:"source" envPrefix:"SOURCE_"`
	Picker PickerConfig `yaml:"picker" envPrefix:"PICKER_"`
	Store  StoreConfig  `yaml:"store" envPrefix:"STORE_"`
	Commit CommitConfig `yaml:"commit" envPrefix:"COMMIT_"`
	Log    LogConfig    `yaml:"log" envPrefix:"LOG_"`
}

// SourceConfig describes the content API the picker lists entries from.
type SourceConfig struct {
	BaseURL           string  `yaml:"base_url" env:"BASE_URL"`
	Kind              string  `yaml:"kind" env:"KIND"`
	Status            string  `yaml:"status" env:"STATUS"`       // draft, publish, any
	PageSize          int     `yaml:"page_size" env:"PAGE_SIZE"` // -1 fetches every page
	TimeoutMs         int     `yaml:"timeout_ms" env:"TIMEOUT_MS"`
	Username          string  `yaml:"username" env:"USERNAME"`
	AppPassword       string  `yaml:"app_password" env:"APP_PASSWORD"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
}

// PickerConfig tunes the interactive picker.
type PickerConfig struct {
	// PendingOnEmpty renders an empty or failed fetch as loading forever.
	PendingOnEmpty bool   `yaml:"pending_on_empty" env:"PENDING_ON_EMPTY"`
	Preview        bool   `yaml:"preview" env:"PREVIEW"`
	Locale         string `yaml:"locale" env:"LOCALE"`
}

// StoreConfig locates the block database.
type StoreConfig struct {
	DBPath             string `yaml:"db_path" env:"DB_PATH"` // Empty uses the default data dir
	RecordCacheTTLSecs int    `yaml:"record_cache_ttl_secs" env:"RECORD_CACHE_TTL_SECS"`
}

// CommitConfig lists extra commit destinations.
type CommitConfig struct {
	// Exec runs after every commit with the selection JSON on stdin.
	Exec string `yaml:"exec" env:"EXEC"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	File   string `yaml:"file" env:"FILE"`     // Empty uses the default log file
	Format string `yaml:"format" env:"FORMAT"` // text, json
}

var (
	validStatuses   = []string{"draft", "publish", "any"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	kindPattern     = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:              "spoiler",
			Status:            "publish",
			PageSize:          -1,
			TimeoutMs:         10000,
			RequestsPerSecond: 10,
		},
		Picker: PickerConfig{
			Preview: true,
			Locale:  "en",
		},
		Store: StoreConfig{
			RecordCacheTTLSecs: 300,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFromFile(DefaultPaths().ConfigFile())
}

// LoadFromFile loads configuration from a specific file. A missing file
// yields the defaults. Environment overrides are applied last.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ReadFile loads a file like LoadFromFile but ignores the environment.
// Use it when the result is saved back.
func ReadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func readFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveToFile(DefaultPaths().ConfigFile())
}

// SaveToFile saves the configuration to a specific file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold an application password.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnvOverrides overlays SPOILER_<SECTION>_<KEY> environment variables.
// Unset variables leave the current values alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Source.BaseURL != "" {
		u, err := url.Parse(c.Source.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("source.base_url must be an http(s) URL, got %q", c.Source.BaseURL)
		}
	}
	if !kindPattern.MatchString(c.Source.Kind) {
		return fmt.Errorf("source.kind must match %s, got %q", kindPattern, c.Source.Kind)
	}
	if !contains(validStatuses, c.Source.Status) {
		return fmt.Errorf("source.status must be one of %v, got %q", validStatuses, c.Source.Status)
	}
	if c.Source.PageSize != -1 && c.Source.PageSize <= 0 {
		return fmt.Errorf("source.page_size must be -1 or positive, got %d", c.Source.PageSize)
	}
	if c.Source.TimeoutMs < 0 {
		return fmt.Errorf("source.timeout_ms must be >= 0, got %d", c.Source.TimeoutMs)
	}
	if c.Source.RequestsPerSecond < 0 {
		return fmt.Errorf("source.requests_per_second must be >= 0, got %v", c.Source.RequestsPerSecond)
	}
	if c.Source.AppPassword != "" && c.Source.Username == "" {
		return errors.New("source.app_password requires source.username")
	}

	if c.Picker.Locale == "" {
		return errors.New("picker.locale must not be empty")
	}

	if c.Store.RecordCacheTTLSecs < 0 {
		return fmt.Errorf("store.record_cache_ttl_secs must be >= 0, got %d", c.Store.RecordCacheTTLSecs)
	}

	if !contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of %v, got %q", validLogLevels, c.Log.Level)
	}
	if !contains(validLogFormats, c.Log.Format) {
		return fmt.Errorf("log.format must be one of %v, got %q", validLogFormats, c.Log.Format)
	}

	return nil
}

// FetchTimeout returns the per-fetch timeout; zero means none.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutMs) * time.Millisecond
}

// RecordCacheTTL returns how long resolved records stay cached.
func (c *Config) RecordCacheTTL() time.Duration {
	return time.Duration(c.Store.RecordCacheTTLSecs) * time.Second
}

// DBPath returns the configured database path or the default one.
func (c *Config) DBPath(p *Paths) string {
	if c.Store.DBPath != "" {
		return c.Store.DBPath
	}
	return p.DatabaseFile()
}

// LogFile returns the configured log file or the default one.
func (c *Config) LogFile(p *Paths) string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return p.LogFile()
}

// Get retrieves a configuration value by key (e.g., "source.base_url").
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "source":
		return c.getSourceField(field)
	case "picker":
		return c.getPickerField(field)
	case "store":
		return c.getStoreField(field)
	case "commit":
		return c.getCommitField(field)
	case "log":
		return c.getLogField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) getSourceField(field string) (string, error) {
	switch field {
	case "base_url":
		return c.Source.BaseURL, nil
	case "kind":
		return c.Source.Kind, nil
	case "status":
		return c.Source.Status, nil
	case "page_size":
		return strconv.Itoa(c.Source.PageSize), nil
	case "timeout_ms":
		return strconv.Itoa(c.Source.TimeoutMs), nil
	case "username":
		return c.Source.Username, nil
	case "app_password":
		return c.Source.AppPassword, nil
	case "requests_per_second":
		return strconv.FormatFloat(c.Source.RequestsPerSecond, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unknown field: source.%s", field)
	}
}

func (c *Config) getPickerField(field string) (string, error) {
	switch field {
	case "pending_on_empty":
		return strconv.FormatBool(c.Picker.PendingOnEmpty), nil
	case "preview":
		return strconv.FormatBool(c.Picker.Preview), nil
	case "locale":
		return c.Picker.Locale, nil
	default:
		return "", fmt.Errorf("unknown field: picker.%s", field)
	}
}

func (c *Config) getStoreField(field string) (string, error) {
	switch field {
	case "db_path":
		return c.Store.DBPath, nil
	case "record_cache_ttl_secs":
		return strconv.Itoa(c.Store.RecordCacheTTLSecs), nil
	default:
		return "", fmt.Errorf("unknown field: store.%s", field)
	}
}

func (c *Config) getCommitField(field string) (string, error) {
	switch field {
	case "exec":
		return c.Commit.Exec, nil
	default:
		return "", fmt.Errorf("unknown field: commit.%s", field)
	}
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	case "format":
		return c.Log.Format, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

// Set sets a configuration value by key. The result is validated; on
// failure the previous value is restored.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	prev := *c
	switch section {
	case "source":
		err = c.setSourceField(field, value)
	case "picker":
		err = c.setPickerField(field, value)
	case "store":
		err = c.setStoreField(field, value)
	case "commit":
		err = c.setCommitField(field, value)
	case "log":
		err = c.setLogField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
	if err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		*c = prev
		return err
	}
	return nil
}

func (c *Config) setSourceField(field, value string) error {
	switch field {
	case "base_url":
		c.Source.BaseURL = strings.TrimRight(value, "/")
	case "kind":
		c.Source.Kind = value
	case "status":
		c.Source.Status = value
	case "page_size":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		c.Source.PageSize = v
	case "timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		c.Source.TimeoutMs = v
	case "username":
		c.Source.Username = value
	case "app_password":
		c.Source.AppPassword = value
	case "requests_per_second":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value: %s", value)
		}
		c.Source.RequestsPerSecond = v
	default:
		return fmt.Errorf("unknown field: source.%s", field)
	}
	return nil
}

func (c *Config) setPickerField(field, value string) error {
	switch field {
	case "pending_on_empty":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		c.Picker.PendingOnEmpty = v
	case "preview":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		c.Picker.Preview = v
	case "locale":
		c.Picker.Locale = value
	default:
		return fmt.Errorf("unknown field: picker.%s", field)
	}
	return nil
}

func (c *Config) setStoreField(field, value string) error {
	switch field {
	case "db_path":
		c.Store.DBPath = value
	case "record_cache_ttl_secs":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		c.Store.RecordCacheTTLSecs = v
	default:
		return fmt.Errorf("unknown field: store.%s", field)
	}
	return nil
}

func (c *Config) setCommitField(field, value string) error {
	switch field {
	case "exec":
		c.Commit.Exec = value
	default:
		return fmt.Errorf("unknown field: commit.%s", field)
	}
	return nil
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		c.Log.Level = value
	case "file":
		c.Log.File = value
	case "format":
		c.Log.Format = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

func splitKey(key string) (section, field string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid key format: %s (expected section.key)", key)
	}
	return parts[0], parts[1], nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ListKeys returns all available configuration keys.
func ListKeys() []string {
	return []string{
		"source.base_url",
		"source.kind",
		"source.status",
		"source.page_size",
		"source.timeout_ms",
		"source.username",
		"source.app_password",
		"source.requests_per_second",
		"picker.pending_on_empty",
		"picker.preview",
		"picker.locale",
		"store.db_path",
		"store.record_cache_ttl_secs",
		"commit.exec",
		"log.level",
		"log.file",
		"log.format",
	}
}
