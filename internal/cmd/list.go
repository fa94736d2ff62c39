package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/spoiler/internal/content"
	"github.com/runger/spoiler/internal/picker"
)

var (
	listStatus   string
	listPageSize int
	listJSON     bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List entries available to the picker",
	GroupID: groupCore,
	Long: `List the entries the picker would offer, in the order the site returns them.

Examples:
  spoiler list                  # Published entries
  spoiler list --status any     # Drafts and published
  spoiler list --json           # id, label and payload as JSON`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "entry status: draft, publish or any (default from config)")
	listCmd.Flags().IntVarP(&listPageSize, "limit", "n", 0, "entries to fetch, -1 for all (default from config)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	status := content.Status(cfg.Source.Status)
	if listStatus != "" {
		if status, err = content.ParseStatus(listStatus); err != nil {
			return err
		}
	}
	pageSize := cfg.Source.PageSize
	if listPageSize != 0 {
		pageSize = listPageSize
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	provider := picker.NewContentProvider(client, cfg.FetchTimeout())
	resp, err := provider.Fetch(cmdContext(cmd), picker.Request{
		Status:   picker.Status(status),
		PageSize: pageSize,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Options)
	}

	if len(resp.Options) == 0 {
		fmt.Fprintln(out, "No entries.")
		return nil
	}

	width := termWidth()
	for _, opt := range resp.Options {
		id := fmt.Sprintf("%8d", opt.ID)
		fmt.Fprintf(out, "%s%s%s  %s\n", colorCyan, id, colorReset, picker.TruncateLabel(opt.Label, width-len(id)-2))
	}
	return nil
}

// cmdContext returns the command context, or Background outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
