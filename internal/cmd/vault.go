package cmd

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aitsambajwa-iss/Checkoutly/internal/config"
	"github.com/aitsambajwa-iss/Checkoutly/internal/vault"
)

var vaultUnderstand bool

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Operator access to the token vault",
}

var vaultRevealCmd = &cobra.Command{
	Use:   "reveal <token>",
	Short: "Print the value stored behind a redaction token",
	Long: `Print the value stored behind a redaction token.

This decrypts customer data (card numbers, contact details) to the terminal.
It must be acknowledged with --i-understand and every use is logged.`,
	Args: cobra.ExactArgs(1),
	RunE: vaultReveal,
}

func init() {
	vaultRevealCmd.Flags().BoolVar(&vaultUnderstand, "i-understand", false, "acknowledge that the plaintext value will be printed")
	vaultCmd.AddCommand(vaultRevealCmd)
	rootCmd.AddCommand(vaultCmd)
}

func vaultReveal(cmd *cobra.Command, args []string) error {
	if !vaultUnderstand {
		return errors.New("refusing to reveal without --i-understand")
	}
	ctx, span := tracer.Start(cmd.Context(), "vault.reveal")
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StorageBackend != config.DefaultStorageBackend {
		return fmt.Errorf("reveal reads the local vault; storage_backend is %q", cfg.StorageBackend)
	}
	store, err := vault.NewSQLiteStore(cfg.VaultDBPath(), cfg.VaultKey)
	if err != nil {
		return fmt.Errorf("initializing vault: %w", err)
	}
	defer store.Close()

	token := args[0]
	e, err := store.Reveal(ctx, token)
	if err != nil {
		return fmt.Errorf("revealing %s: %w", token, err)
	}
	log.Warn().Str("token", token).Str("kind", e.Kind).Str("chat_id", e.ChatID).Msg("vault_token_revealed")
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Kind, e.ChatID, e.Value)
	return nil
}
