package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/config"
	"github.com/alexgetty/roux/internal/core"
	"github.com/alexgetty/roux/internal/embedder"
	"github.com/alexgetty/roux/internal/logger"
	"github.com/alexgetty/roux/internal/mcpserver"
	"github.com/alexgetty/roux/internal/store"
	"github.com/alexgetty/roux/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	Long: `Start watching the configured source root and serve the knowledge
graph to MCP clients over stdin/stdout until the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
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

	warnings := logger.NewWarnings()
	s := store.New(cfg.SourceRoot, c, warnings)

	if _, err := s.ReconcileAll(); err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}

	var emb embedder.Embedder
	if cfg.EmbeddingType == config.EmbeddingTypeLocal {
		emb = embedder.NewLocal(cfg.EmbeddingDims)
	}

	coreInstance := core.New(s, emb)

	w := watcher.New(cfg.SourceRoot, time.Duration(cfg.DebounceMS)*time.Millisecond, warnings, func(ids map[string]struct{}) {
		if _, err := s.Reconcile(ids); err != nil {
			logger.Error("reconcile batch failed: %v", err)
		}
	})
	if _, err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	server := mcpserver.New("roux", GetVersion(), coreInstance, warnings)
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp server failed: %w", err)
	}
	return nil
}
