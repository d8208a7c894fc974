package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aitsambajwa-iss/Checkoutly/internal/audit"
	"github.com/aitsambajwa-iss/Checkoutly/internal/config"
)

var (
	auditChat  string
	auditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and verify the redaction audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, newest first",
	RunE:  auditList,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [record-id]",
	Short: "Verify HMAC signature of an audit record",
	Args:  cobra.ExactArgs(1),
	RunE:  auditVerify,
}

func init() {
	auditListCmd.Flags().StringVar(&auditChat, "chat", "", "Filter by chat ID")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "Maximum records to show")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	rootCmd.AddCommand(auditCmd)
}

// openAuditStore opens the local audit database. Records written to
// PostgREST are queried there, not through the CLI.
func openAuditStore() (*audit.SQLiteStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StorageBackend != config.DefaultStorageBackend {
		return nil, fmt.Errorf("audit commands read the local store; storage_backend is %q", cfg.StorageBackend)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return audit.NewSQLiteStore(cfg.AuditDBPath(), cfg.AuditSigningKey, cfg.AuditSealKey)
}

func auditList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditStore()
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer store.Close()

	records, err := store.List(ctx, audit.Filter{ChatID: auditChat, Limit: auditLimit})
	if err != nil {
		return fmt.Errorf("querying audit records: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit records found.")
		return nil
	}
	renderAuditList(cmd.OutOrStdout(), records)
	return nil
}

func auditVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	recordID := args[0]

	store, err := openAuditStore()
	if err != nil {
		return fmt.Errorf("initializing audit store: %w", err)
	}
	defer store.Close()

	valid, err := store.Verify(ctx, recordID)
	if errors.Is(err, audit.ErrRecordNotFound) {
		return fmt.Errorf("no audit record %s", recordID)
	}
	if err != nil {
		return fmt.Errorf("verifying audit record: %w", err)
	}
	renderVerifyResult(cmd.OutOrStdout(), recordID, valid)
	if !valid {
		return fmt.Errorf("signature verification failed for %s", recordID)
	}
	return nil
}

// renderAuditList writes one line per record to w (testable).
func renderAuditList(w io.Writer, records []audit.Record) {
	fmt.Fprintf(w, "Audit Records (showing %d):\n\n", len(records))
	for i := range records {
		r := &records[i]
		fmt.Fprintf(w, "  %s | %s | %s | %s | %s\n",
			r.ID,
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.ChatID,
			strings.Join(r.TokensApplied, ","),
			r.SanitizedContent,
		)
	}
}

// renderVerifyResult writes verify outcome to w (testable).
func renderVerifyResult(w io.Writer, recordID string, valid bool) {
	if valid {
		fmt.Fprintf(w, "✓ Record %s: signature VALID (HMAC-SHA256 intact)\n", recordID)
	} else {
		fmt.Fprintf(w, "✗ Record %s: signature INVALID (possible tampering)\n", recordID)
	}
}
