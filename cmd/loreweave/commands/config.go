package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/config"
	"github.com/loreweave/loreweave/errors"
)

// ConfigCmd manages the loreweave configuration file.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage loreweave configuration",
	Long: `Inspect and bootstrap the loreweave configuration.

Examples:
  loreweave config show    # Show the effective configuration
  loreweave config init    # Write a default config file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

var configInitPathFlag string

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringVar(&configInitPathFlag, "path", "", "Where to write the config file (default ~/.loreweave/config.toml)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to render configuration")
	}
	fmt.Print(string(out))
	fmt.Printf("\n# rate limit: %s\n", cfg.RateLimit.String())
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPathFlag
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "cannot determine home directory")
		}
		path = filepath.Join(home, ".loreweave", "config.toml")
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}
