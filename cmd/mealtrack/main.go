// Package main implements the mealtrack server and its maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mealtrack/internal/config"
	"mealtrack/internal/logging"
)

var (
	// configPath points at the YAML configuration file.
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mealtrack",
	Short: "Food recognition and daily calorie budget service",
	Long: `mealtrack recognizes foods in meal photos, resolves them against a
nutrition catalog and keeps a per-user meal ledger against a daily
calorie budget.

Every setting can be overridden with MEALTRACK_<SECTION>_<KEY> environment
variables, e.g. MEALTRACK_STORE_DSN.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MEALTRACK_CONFIG"), "path to the YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(detectCmd)
}

// setup loads the configuration and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
