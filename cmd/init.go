package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexgetty/roux/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter roux.yaml and create the cache directory",
	Long: `Initialize Roux in a project directory.

Writes a starter roux.yaml and creates the .roux/ cache directory that
will hold the sqlite-backed node cache.

Examples:
  roux init              # Initialize in the current directory
  roux init ./notes      # Initialize in a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		if err := os.MkdirAll(absPath, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	configPath, err := config.WriteDefault(absPath)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configPath)

	cfg, err := config.Load(absPath)
	if err != nil {
		return err
	}
	cacheDir, err := cfg.CacheDir()
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", cacheDir)
	fmt.Println("Run `roux serve` to start the MCP server.")

	return nil
}
