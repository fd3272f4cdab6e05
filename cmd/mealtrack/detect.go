package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"mealtrack/internal/app"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Recognize foods in an image and resolve them against the catalog",
	Long: `Run the configured recognition command on one image and print the
detections with their catalog matches as JSON. Nothing is written to the
meal ledger.

Examples:
  mealtrack detect lunch.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	imagePath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve image path: %w", err)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	invoker, err := newInvoker(cfg.Recognition, log, nil)
	if err != nil {
		return err
	}
	resolver := app.NewResolver(st.repo, cfg.Resolver.Concurrency, log, nil)

	result, err := app.NewScanService(invoker, resolver, log).Scan(cmd.Context(), imagePath)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
