package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/config"
	"github.com/alexgetty/roux/internal/logger"
	"github.com/alexgetty/roux/internal/store"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Force a full reconcile of every markdown file under the source root",
	Long: `Walks the configured source root and the existing cache, reconciling
the union of both so a cold or stale cache is rebuilt from scratch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReindex()
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cacheDir, err := cfg.CacheDir()
	if err != nil {
		return err
	}

	c, err := cache.Open(cacheDir)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer c.Close()

	s := store.New(cfg.SourceRoot, c, logger.NewWarnings())
	summary, err := s.ReconcileAll()
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	fmt.Printf("nodes upserted: %d\n", summary.NodesUpserted)
	fmt.Printf("nodes deleted:  %d\n", summary.NodesDeleted)
	fmt.Printf("ghosts created: %d\n", summary.GhostsCreated)
	for _, w := range summary.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
