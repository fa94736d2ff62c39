// Package config provides configuration management for the spoiler picker.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user directories.
const appName = "spoiler"

// Paths holds the per-user directories.
type Paths struct {
	// ConfigDir holds config.yaml and locale overrides (~/.config/spoiler)
	ConfigDir string

	// DataDir holds the block database and logs (~/.local/share/spoiler)
	DataDir string

	// CacheDir holds disposable files (~/.cache/spoiler)
	CacheDir string

	// RuntimeDir holds the picker lock file
	RuntimeDir string
}

// DefaultPaths returns the default paths based on the XDG Base Directory
// spec. On Windows, it uses %APPDATA% instead.
func DefaultPaths() *Paths {
	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}

		return &Paths{
			ConfigDir:  filepath.Join(appData, appName),
			DataDir:    filepath.Join(localAppData, appName),
			CacheDir:   filepath.Join(localAppData, appName, "cache"),
			RuntimeDir: filepath.Join(localAppData, appName, "run"),
		}
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(home, ".cache")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(cacheHome, appName, "run")
	} else {
		runtimeDir = filepath.Join(runtimeDir, appName)
	}

	return &Paths{
		ConfigDir:  filepath.Join(configHome, appName),
		DataDir:    filepath.Join(dataHome, appName),
		CacheDir:   filepath.Join(cacheHome, appName),
		RuntimeDir: runtimeDir,
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// LocaleDir returns the directory searched for <locale>.yaml overrides.
func (p *Paths) LocaleDir() string {
	return filepath.Join(p.ConfigDir, "locale")
}

// DatabaseFile returns the path to the SQLite database.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.DataDir, "blocks.db")
}

// LogDir returns the path to the log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir, "logs")
}

// LogFile returns the path to the picker log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogDir(), "picker.log")
}

// LockFile returns the path to the picker's advisory lock.
func (p *Paths) LockFile() string {
	return filepath.Join(p.RuntimeDir, "picker.lock")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.CacheDir,
		p.RuntimeDir,
		p.LogDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}
