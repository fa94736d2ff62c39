// Package cmd implements the spoiler command-line interface.
package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/runger/spoiler/internal/config"
	"github.com/runger/spoiler/internal/logging"
)

const (
	groupCore  = "core"
	groupSetup = "setup"
)

var (
	configFile string
	dbPath     string

	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "spoiler",
	Short: "Pick and inspect spoiler blocks",
	Long: `spoiler - embed spoiler entries from a content site
  - spoiler-picker pick   choose an entry for a block
  - spoiler blocks        list committed blocks
  - spoiler show <id>     show a block's current content`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupLogging,
	PersistentPostRunE: closeLogging,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupCore, Title: "Blocks:"},
		&cobra.Group{ID: groupSetup, Title: "Setup:"},
	)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/spoiler/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "block database (overrides store.db_path)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the config file named by --config or the default one.
func loadConfig() (*config.Config, *config.Paths, error) {
	paths := config.DefaultPaths()
	path := configFile
	if path == "" {
		path = paths.ConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	return cfg, paths, nil
}

// configPath returns the file config commands read and write.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.DefaultPaths().ConfigFile()
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		// config commands must still work on a broken file
		cfg = config.DefaultConfig()
	}
	closer, err := logging.Setup(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Format:  cfg.Log.Format,
		Secrets: []string{cfg.Source.AppPassword},
	})
	if err != nil {
		return err
	}
	logCloser = closer
	return nil
}

func closeLogging(*cobra.Command, []string) error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}
