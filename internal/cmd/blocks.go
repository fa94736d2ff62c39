package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runger/spoiler/internal/picker"
	"github.com/runger/spoiler/internal/storage"
)

var blocksLimit int

var blocksCmd = &cobra.Command{
	Use:     "blocks",
	Short:   "List committed blocks",
	GroupID: groupCore,
	Long: `List committed blocks, most recently committed first.

Examples:
  spoiler blocks            # Last 20 blocks
  spoiler blocks -n 0       # All blocks`,
	Args: cobra.NoArgs,
	RunE: runBlocks,
}

var rmCmd = &cobra.Command{
	Use:     "rm <block-id>",
	Short:   "Delete a committed block",
	GroupID: groupCore,
	Args:    cobra.ExactArgs(1),
	RunE:    runRm,
}

func init() {
	blocksCmd.Flags().IntVarP(&blocksLimit, "limit", "n", 20, "Maximum number of blocks to show (0 for all)")
}

func runBlocks(cmd *cobra.Command, _ []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := openStore(cfg, paths)
	if err != nil {
		return err
	}
	defer store.Close()

	blocks, err := store.ListBlocks(cmdContext(cmd), blocksLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(blocks) == 0 {
		fmt.Fprintln(out, "No blocks committed yet.")
		return nil
	}

	width := termWidth()
	for _, b := range blocks {
		when := humanize.Time(time.UnixMilli(b.CommittedAtUnixMs))
		fmt.Fprintf(out, "%s%s%s  %sentry %d, %s%s\n", colorCyan, b.BlockID, colorReset, colorDim, b.OptionID, when, colorReset)
		if b.CommitCount > 1 {
			fmt.Fprintf(out, "    committed %s times\n", humanize.Comma(int64(b.CommitCount)))
		}
		if preview := blockPreview(b); preview != "" {
			fmt.Fprintf(out, "    %s\n", picker.TruncateLabel(preview, width-4))
		}
	}
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	if err := storage.ValidateBlockID(args[0]); err != nil {
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

	if err := store.DeleteBlock(cmdContext(cmd), args[0]); err != nil {
		if errors.Is(err, storage.ErrBlockNotFound) {
			return fmt.Errorf("no block %s", args[0])
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sDeleted%s %s\n", colorGreen, colorReset, args[0])
	return nil
}
