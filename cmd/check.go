package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/config"
	"github.com/alexgetty/roux/internal/logger"
	"github.com/alexgetty/roux/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run an integrity sweep over the cache and graph mirror",
	Long: `Reconciles the cache against the source root (as reindex does) to
build the graph mirror, then reports case-insensitive id collisions on
disk, embedding dimension drift, and orphaned tag rows. The findings
themselves are reported, not repaired.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck()
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck() error {
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
	if _, err := s.ReconcileAll(); err != nil {
		return fmt.Errorf("reconcile before check: %w", err)
	}

	report, err := s.Check()
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	fmt.Printf("mirror version:     %d\n", report.MirrorVersion)
	fmt.Printf("case collisions:    %d\n", len(report.CaseCollisions))
	for _, c := range report.CaseCollisions {
		fmt.Printf("  %s\n", c)
	}
	fmt.Printf("dimension drift:    %v\n", report.DimensionDrift)
	fmt.Printf("orphan tag rows:    %d\n", report.OrphanTagRows)
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
