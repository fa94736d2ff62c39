package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:     "cache",
	Short:   "Manage the record cache",
	GroupID: groupSetup,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired cached records",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	cfg, paths, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := openStore(cfg, paths)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.PruneExpiredRecords(cmdContext(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired record(s)\n", n)
	return nil
}
