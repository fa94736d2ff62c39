package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/spoiler/internal/config"
	"github.com/runger/spoiler/internal/htmltext"
	"github.com/runger/spoiler/internal/logging"
	"github.com/runger/spoiler/internal/picker"
	"github.com/runger/spoiler/internal/storage"
)

var (
	showRaw  bool
	showJSON bool
)

var showCmd = &cobra.Command{
	Use:     "show <block-id>",
	Short:   "Show a committed block",
	GroupID: groupCore,
	Long: `Show the current content of the entry a block committed to.

The entry is fetched from the site (through the record cache). If that
fails, the payload saved at commit time is shown instead.

Examples:
  spoiler show 7c9e6679-7425-40de-944b-e07fc1f90ae7
  spoiler show --raw <block-id>    # Saved payload HTML, no fetch
  spoiler show --json <block-id>   # Stored selection as JSON`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print the saved payload HTML without fetching")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the stored selection as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	blockID := args[0]
	if err := storage.ValidateBlockID(blockID); err != nil {
		return err
	}

	cfg, paths, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := openStore(cfg, paths)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmdContext(cmd)
	block, err := store.GetBlock(ctx, blockID)
	if err != nil {
		if errors.Is(err, storage.ErrBlockNotFound) {
			return fmt.Errorf("no block %s", blockID)
		}
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case showJSON:
		return json.NewEncoder(out).Encode(block.Selection())
	case showRaw:
		fmt.Fprintln(out, block.Payload)
		return nil
	}

	rec, err := resolveBlock(cmd, cfg, block, store)
	if err != nil {
		logging.NewLogger("cmd").WithError(err).WithField("block_id", blockID).Warn("resolve failed")
		fmt.Fprintf(out, "%sShowing the copy saved at commit time.%s\n\n", colorYellow, colorReset)
		fmt.Fprintln(out, htmltext.Text(block.Payload))
		return nil
	}

	fmt.Fprintf(out, "%s%s%s\n\n", colorBold, rec.Title, colorReset)
	fmt.Fprintln(out, htmltext.Text(rec.Content))
	return nil
}

// resolveBlock fetches the current record for a block through the cache.
func resolveBlock(cmd *cobra.Command, cfg *config.Config, block *storage.Block, store *storage.SQLiteStore) (picker.Record, error) {
	client, err := newClient(cfg)
	if err != nil {
		return picker.Record{}, err
	}
	resolver := storage.NewCachedResolver(
		picker.NewContentResolver(client, cfg.FetchTimeout()),
		store, cfg.Source.Kind, cfg.RecordCacheTTL(),
	)
	return resolver.Resolve(cmdContext(cmd), block.OptionID)
}

// blockPreview is a one-line plain-text rendering of the saved payload.
func blockPreview(b storage.Block) string {
	return picker.CleanLabel(htmltext.Inline(b.Payload))
}
