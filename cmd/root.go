package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set via ldflags at build time:
// -ldflags "-X github.com/alexgetty/roux/cmd.version=1.0.0"
var version = "dev"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "roux",
	Short: "Roux - a markdown knowledge graph MCP server",
	Long: `Roux is a markdown knowledge graph MCP server. It watches a directory
of markdown notes, maintains a linked graph over them, and exposes that
graph to MCP clients over stdio: search, traversal, tag queries, and CRUD
on nodes.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() {
	rootCmd.SuggestionsMinimumDistance = 2
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("source", "", "Source root (defaults to the current directory)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("source.root", rootCmd.PersistentFlags().Lookup("source"))

	rootCmd.SetHelpTemplate(`{{if .Long}}
{{.Long}}
{{else}}
  {{.Short}}
{{end}}
  Usage: {{.UseLine}}
{{if .HasAvailableSubCommands}}
  Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}    {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
  Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

  Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`)
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}
