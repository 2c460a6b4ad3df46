package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/cmd/loreweave/commands"
	"github.com/loreweave/loreweave/logger"
)

var rootCmd = &cobra.Command{
	Use:   "loreweave",
	Short: "loreweave - knowledge-base entity enrichment",
	Long: `loreweave resolves extracted entity mentions against external
knowledge bases (encyclopedia, structured-data graph, ontology graph)
through a cascading fallback pipeline with caching and rate limiting.

Examples:
  loreweave enrich entities.yaml        # Resolve entities from a YAML list
  loreweave enrich Berlin Hamburg       # Resolve names given as arguments
  loreweave cache stats                 # Show cache statistics
  loreweave config init                 # Write a default config file`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.EnrichCmd)
	rootCmd.AddCommand(commands.CacheCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
