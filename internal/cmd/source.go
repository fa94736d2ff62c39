package cmd

import (
	"errors"
	"fmt"

	"github.com/runger/spoiler/internal/config"
	"github.com/runger/spoiler/internal/content"
	"github.com/runger/spoiler/internal/storage"
)

// newClient builds a content API client from the source section.
func newClient(cfg *config.Config) (*content.Client, error) {
	if cfg.Source.BaseURL == "" {
		return nil, errors.New("source.base_url is not set (spoiler config set source.base_url <url>)")
	}
	opts := []content.ClientOption{
		content.WithRateLimit(cfg.Source.RequestsPerSecond, 1),
		content.WithUserAgent("spoiler/" + Version),
	}
	if cfg.Source.Username != "" {
		opts = append(opts, content.WithBasicAuth(cfg.Source.Username, cfg.Source.AppPassword))
	}
	return content.NewClient(cfg.Source.BaseURL, cfg.Source.Kind, opts...)
}

// openStore opens the block database.
func openStore(cfg *config.Config, paths *config.Paths) (*storage.SQLiteStore, error) {
	store, err := storage.NewSQLiteStore(cfg.DBPath(paths))
	if err != nil {
		return nil, fmt.Errorf("failed to open block database: %w", err)
	}
	return store, nil
}
