package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aitsambajwa-iss/Checkoutly/internal/config"
	"github.com/aitsambajwa-iss/Checkoutly/internal/inventory"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Manage the local product catalogue",
}

var inventorySeedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Upsert products from a YAML file into the local catalogue",
	Args:  cobra.ExactArgs(1),
	RunE:  inventorySeed,
}

func init() {
	inventoryCmd.AddCommand(inventorySeedCmd)
	rootCmd.AddCommand(inventoryCmd)
}

func inventorySeed(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "inventory.seed")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.InventoryBackend != config.DefaultInventoryBackend {
		return fmt.Errorf("seeding writes the local catalogue; inventory_backend is %q", cfg.InventoryBackend)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	products, err := inventory.LoadSeedFile(args[0])
	if err != nil {
		return err
	}
	store, err := inventory.NewSQLiteStore(cfg.InventoryDBPath())
	if err != nil {
		return fmt.Errorf("initializing inventory: %w", err)
	}
	defer store.Close()

	if err := store.Seed(ctx, products); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d products into %s\n", len(products), cfg.InventoryDBPath())
	return nil
}
