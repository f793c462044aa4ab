package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/composels/cmd/composels/commands"
	"github.com/teranos/composels/logger"
)

var rootCmd = &cobra.Command{
	Use:   "composels",
	Short: "composels - docker-compose language server",
	Long: `composels - completion and hover for docker-compose files.

Suggests the schema keys of the compose format declared by the file's
top-level version (v1 unless version is "2") and container image names
from Docker Hub after image:.

Available commands:
  serve    - Run the language server (stdio or WebSocket)
  complete - Show the suggestions for one cursor position
  keys     - List the keys of a schema version
  config   - Show or validate configuration
  version  - Show version information

Examples:
  composels serve                                 # LSP over stdio
  composels serve --ws 127.0.0.1:8787             # LSP over WebSocket at /lsp
  composels complete docker-compose.yml --line 3 --character 4
  composels keys --schema 2
  composels config show --format yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		// Logs always go to stderr; stdout carries LSP traffic in stdio mode
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file merged after the default locations")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.CompleteCmd)
	rootCmd.AddCommand(commands.KeysCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
