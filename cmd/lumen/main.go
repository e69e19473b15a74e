// Package main is the entry point for the lumen CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lensworks/lumen/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lumen",
		Short: "Lumen image indexing server",
		Long:  `Lumen watches image directories, maintains a deduplicated vector index of their contents, and answers similarity queries.`,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(scanCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(dupesCmd())
	cmd.AddCommand(cacheCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from a .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
