package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.Kind != "spoiler" {
		t.Errorf("Expected kind=spoiler, got %s", cfg.Source.Kind)
	}
	if cfg.Source.Status != "publish" {
		t.Errorf("Expected status=publish, got %s", cfg.Source.Status)
	}
	if cfg.Source.PageSize != -1 {
		t.Errorf("Expected page_size=-1, got %d", cfg.Source.PageSize)
	}
	if cfg.Picker.PendingOnEmpty {
		t.Error("Expected pending_on_empty=false")
	}
	if !cfg.Picker.Preview {
		t.Error("Expected preview=true")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level=info, got %s", cfg.Log.Level)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid: %v", err)
	}
}

func TestConfigGet(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		key      string
		expected string
	}{
		{"source.base_url", ""},
		{"source.kind", "spoiler"},
		{"source.status", "publish"},
		{"source.page_size", "-1"},
		{"source.timeout_ms", "10000"},
		{"source.username", ""},
		{"source.app_password", ""},
		{"source.requests_per_second", "10"},
		{"picker.pending_on_empty", "false"},
		{"picker.preview", "true"},
		{"picker.locale", "en"},
		{"store.db_path", ""},
		{"store.record_cache_ttl_secs", "300"},
		{"commit.exec", ""},
		{"log.level", "info"},
		{"log.file", ""},
		{"log.format", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cfg.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%q) error: %v", tt.key, err)
			}
			if got != tt.expected {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestConfigSet(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"source.base_url", "https://example.com"},
		{"source.kind", "post"},
		{"source.status", "draft"},
		{"source.page_size", "25"},
		{"source.timeout_ms", "500"},
		{"source.username", "editor"},
		{"source.requests_per_second", "2.5"},
		{"picker.pending_on_empty", "true"},
		{"picker.preview", "false"},
		{"picker.locale", "de"},
		{"store.db_path", "/tmp/blocks.db"},
		{"store.record_cache_ttl_secs", "0"},
		{"commit.exec", "notify-send spoiler"},
		{"log.level", "debug"},
		{"log.file", "/tmp/picker.log"},
		{"log.format", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := DefaultConfig()
			if err := cfg.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) error: %v", tt.key, tt.value, err)
			}
			got, _ := cfg.Get(tt.key)
			if got != tt.value {
				t.Errorf("After Set, Get(%q) = %q, want %q", tt.key, got, tt.value)
			}
		})
	}
}

func TestConfigSet_TrimsBaseURLSlash(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set("source.base_url", "https://example.com/"); err != nil {
		t.Fatal(err)
	}
	if cfg.Source.BaseURL != "https://example.com" {
		t.Errorf("BaseURL = %q", cfg.Source.BaseURL)
	}
}

func TestConfigGetInvalidKey(t *testing.T) {
	cfg := DefaultConfig()

	for _, key := range []string{"", "source", "source.", ".kind", "unknown.key", "source.unknown", "log.nope"} {
		if _, err := cfg.Get(key); err == nil {
			t.Errorf("Get(%q) should fail", key)
		}
	}
}

func TestConfigSetInvalidValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"source.base_url", "ftp://example.com"},
		{"source.base_url", "not a url"},
		{"source.kind", "Bad Kind"},
		{"source.status", "trash"},
		{"source.page_size", "0"},
		{"source.page_size", "abc"},
		{"source.timeout_ms", "-5"},
		{"source.requests_per_second", "fast"},
		{"source.app_password", "secret"}, // no username
		{"picker.preview", "maybe"},
		{"picker.locale", ""},
		{"store.record_cache_ttl_secs", "-1"},
		{"log.level", "verbose"},
		{"log.format", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			before, _ := cfg.Get(tt.key)
			if err := cfg.Set(tt.key, tt.value); err == nil {
				t.Errorf("Set(%q, %q) should fail", tt.key, tt.value)
			}
			after, _ := cfg.Get(tt.key)
			if after != before {
				t.Errorf("failed Set changed %s from %q to %q", tt.key, before, after)
			}
		})
	}
}

func TestConfigDerivedValues(t *testing.T) {
	cfg := DefaultConfig()
	paths := &Paths{DataDir: "/data/spoiler"}

	if cfg.FetchTimeout() != 10*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout())
	}
	if cfg.RecordCacheTTL() != 5*time.Minute {
		t.Errorf("RecordCacheTTL = %v", cfg.RecordCacheTTL())
	}
	if got := cfg.DBPath(paths); got != filepath.Join("/data/spoiler", "blocks.db") {
		t.Errorf("DBPath = %s", got)
	}
	cfg.Store.DBPath = "/elsewhere.db"
	if got := cfg.DBPath(paths); got != "/elsewhere.db" {
		t.Errorf("DBPath override = %s", got)
	}
	if got := cfg.LogFile(paths); !strings.HasSuffix(got, "picker.log") {
		t.Errorf("LogFile = %s", got)
	}
}

func TestLoadFromFile_NonExistent(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile should not fail for missing file: %v", err)
	}
	if cfg.Source.Kind != "spoiler" {
		t.Error("Missing file should yield defaults")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile should fail for invalid YAML")
	}
}

func TestLoadFromFile_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source:\n  status: trash\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFromFile(path)
	if err == nil || !strings.Contains(err.Error(), "source.status") {
		t.Errorf("expected source.status validation error, got %v", err)
	}
}

func TestLoadFromFile_PartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
source:
  base_url: https://spoilers.example.org
  status: any
picker:
  pending_on_empty: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Source.BaseURL != "https://spoilers.example.org" {
		t.Errorf("BaseURL = %s", cfg.Source.BaseURL)
	}
	if cfg.Source.Status != "any" {
		t.Errorf("Status = %s", cfg.Source.Status)
	}
	if !cfg.Picker.PendingOnEmpty {
		t.Error("PendingOnEmpty should be true")
	}
	// Unset fields keep defaults.
	if cfg.Source.Kind != "spoiler" || cfg.Source.PageSize != -1 || !cfg.Picker.Preview {
		t.Errorf("defaults lost: %+v %+v", cfg.Source, cfg.Picker)
	}
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source:\n  status: draft\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPOILER_SOURCE_STATUS", "any")
	t.Setenv("SPOILER_SOURCE_PAGE_SIZE", "20")
	t.Setenv("SPOILER_PICKER_PREVIEW", "false")
	t.Setenv("SPOILER_LOG_FORMAT", "json")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Source.Status != "any" {
		t.Errorf("env should override file: status=%s", cfg.Source.Status)
	}
	if cfg.Source.PageSize != 20 {
		t.Errorf("PageSize = %d", cfg.Source.PageSize)
	}
	if cfg.Picker.Preview {
		t.Error("Preview should be false")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Format = %s", cfg.Log.Format)
	}
	if cfg.Source.Kind != "spoiler" {
		t.Errorf("unset env must keep value, kind=%s", cfg.Source.Kind)
	}
}

func TestLoadFromFile_BadEnvValue(t *testing.T) {
	t.Setenv("SPOILER_SOURCE_PAGE_SIZE", "lots")
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for non-numeric env override")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Source.BaseURL = "https://example.com"
	cfg.Source.Username = "editor"
	cfg.Source.AppPassword = "abcd efgh"
	cfg.Commit.Exec = "logger -t spoiler"
	cfg.Picker.Locale = "fr"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *loaded, *cfg)
	}
}

func TestListKeysAllGettableAndSettable(t *testing.T) {
	cfg := DefaultConfig()
	for _, key := range ListKeys() {
		val, err := cfg.Get(key)
		if err != nil {
			t.Errorf("ListKeys returned %q but Get failed: %v", key, err)
			continue
		}
		if key == "source.app_password" {
			continue // needs a username
		}
		if err := cfg.Set(key, val); err != nil {
			t.Errorf("Set(%q, %q) with its own value failed: %v", key, val, err)
		}
	}
}

func TestReadFile_IgnoresEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source:\n  status: draft\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPOILER_SOURCE_STATUS", "any")

	cfg, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if cfg.Source.Status != "draft" {
		t.Errorf("ReadFile applied env: status=%s", cfg.Source.Status)
	}
}
