package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/spoiler/internal/config"
)

// secretKeys are masked when listed.
var secretKeys = map[string]bool{
	"source.app_password": true,
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Get or set configuration values",
	GroupID: groupSetup,
	Long: `Get or set spoiler configuration values.

Without a subcommand, lists all configuration keys.

Configuration is stored in ~/.config/spoiler/config.yaml (XDG compliant).
Every key can also be set through the environment, e.g.
SPOILER_SOURCE_BASE_URL for source.base_url.

Keys are in the format: section.key
Sections: source, picker, store, commit, log

Examples:
  spoiler config                                   # List all keys
  spoiler config get source.status                 # Get a value
  spoiler config set source.base_url https://example.com
  spoiler config path                              # Print the config file path`,
	Args: cobra.NoArgs,
	RunE: runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set and save a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configPath())
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configPathCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%sConfiguration Keys%s\n", colorBold, colorReset)
	fmt.Fprintln(out, strings.Repeat("-", 40))
	fmt.Fprintln(out)

	var failedKeys []string
	for _, key := range config.ListKeys() {
		value, err := cfg.Get(key)
		if err != nil {
			failedKeys = append(failedKeys, key)
			continue
		}

		displayValue := value
		switch {
		case displayValue == "":
			displayValue = colorDim + "(not set)" + colorReset
		case secretKeys[key]:
			displayValue = colorDim + "(hidden)" + colorReset
		}

		fmt.Fprintf(out, "  %s%s%s = %s\n", colorCyan, key, colorReset, displayValue)
	}

	if len(failedKeys) > 0 {
		fmt.Fprintf(out, "\n%sWarning:%s Failed to retrieve keys: %s\n", colorYellow, colorReset, strings.Join(failedKeys, ", "))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Config file: %s\n", configPath())
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := cfg.Get(args[0])
	if err != nil {
		return err
	}

	if value == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s(not set)%s\n", colorDim, colorReset)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	path := configPath()

	// Environment overrides are not written back to the file.
	cfg, err := config.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}

	if err := cfg.SaveToFile(path); err != nil {
		return err
	}

	shown := value
	if secretKeys[key] {
		shown = "(hidden)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s%s%s = %s\n", colorCyan, key, colorReset, shown)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved to: %s\n", path)
	return nil
}

