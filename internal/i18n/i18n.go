// Package i18n provides process-wide string lookup for user-facing text.
package i18n

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Domain is the text domain used by the picker.
const Domain = "spoiler-picker"

//go:embed catalog.yaml
var defaultCatalog []byte

// catalog maps domain -> key -> text.
type catalog map[string]map[string]string

var (
	mu       sync.RWMutex
	active   catalog
	loadOnce sync.Once
)

// Init loads the embedded catalog and overlays <dir>/<locale>.yaml when it
// exists. Call it once at startup; T falls back to the embedded catalog if
// Init was never called.
func Init(locale, dir string) error {
	c, err := parse(defaultCatalog)
	if err != nil {
		return fmt.Errorf("i18n: embedded catalog: %w", err)
	}

	if locale != "" && dir != "" {
		path := filepath.Join(dir, locale+".yaml")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			overlay, err := parse(data)
			if err != nil {
				return fmt.Errorf("i18n: %s: %w", path, err)
			}
			c.merge(overlay)
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("i18n: read %s: %w", path, err)
		}
	}

	mu.Lock()
	active = c
	mu.Unlock()
	loadOnce.Do(func() {})
	return nil
}

// T returns the text for key in domain, or key itself when unknown.
func T(key, domain string) string {
	loadOnce.Do(func() {
		c, err := parse(defaultCatalog)
		if err != nil {
			c = catalog{}
		}
		mu.Lock()
		active = c
		mu.Unlock()
	})

	mu.RLock()
	defer mu.RUnlock()
	if s, ok := active[domain][key]; ok {
		return s
	}
	return key
}

// Tf formats the text for key with args.
func Tf(key, domain string, args ...any) string {
	return fmt.Sprintf(T(key, domain), args...)
}

func parse(data []byte) (catalog, error) {
	c := catalog{}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c catalog) merge(other catalog) {
	for domain, keys := range other {
		if c[domain] == nil {
			c[domain] = make(map[string]string, len(keys))
		}
		for k, v := range keys {
			c[domain][k] = v
		}
	}
}
