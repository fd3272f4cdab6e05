package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mealtrack/internal/app"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the nutrition catalog",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Import food records from a JSON seed file",
	Long: `Import food records from a JSON array of objects with the keys
Name, EnglishName, Calories, Category and Quantity. Existing records with
the same Name are replaced. The import is all or nothing.

Examples:
  mealtrack catalog load foods.json
  cat foods.json | mealtrack catalog load -`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogLoad,
}

var catalogGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print one food record by its canonical name",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogGet,
}

func init() {
	catalogCmd.AddCommand(catalogLoadCmd)
	catalogCmd.AddCommand(catalogGetCmd)
}

func runCatalogLoad(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	in := os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		in = f
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	n, err := app.NewCatalogService(st.repo, log).Import(cmd.Context(), in)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", zap.Int("records", n), zap.String("store", cfg.Store.Driver))
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d food records\n", n)
	return nil
}

func runCatalogGet(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	return printFood(cmd, app.NewCatalogService(st.repo, log), args[0])
}

func printFood(cmd *cobra.Command, catalog *app.CatalogService, name string) error {
	food, err := catalog.Lookup(cmd.Context(), name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(food)
}
