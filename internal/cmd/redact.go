package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aitsambajwa-iss/Checkoutly/internal/redact"
)

var redactJSON bool

var redactCmd = &cobra.Command{
	Use:   "redact <text>",
	Short: "Show what the redactor would do to a message (nothing is stored)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRedact,
}

func init() {
	redactCmd.Flags().BoolVar(&redactJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(redactCmd)
}

func runRedact(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "redact")
	defer span.End()

	r, err := redact.New()
	if err != nil {
		return err
	}
	res := r.Redact(ctx, redact.Message{
		Role:    redact.RoleUser,
		Content: strings.Join(args, " "),
	})
	if redactJSON {
		return renderRedactionJSON(cmd.OutOrStdout(), res)
	}
	renderRedaction(cmd.OutOrStdout(), res)
	return nil
}

// renderRedaction writes the sanitized text and the applied kinds to w.
func renderRedaction(w io.Writer, res *redact.Result) {
	fmt.Fprintln(w, res.Sanitized)
	if !res.Changed() {
		fmt.Fprintln(w, "\nNo sensitive data detected.")
		return
	}
	fmt.Fprintf(w, "\nApplied (%d):\n", len(res.Tokens))
	for _, t := range res.Tokens {
		fmt.Fprintf(w, "  %-12s %s\n", t.Kind, t.Value)
	}
}

func renderRedactionJSON(w io.Writer, res *redact.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"sanitized": res.Sanitized,
		"kinds":     res.Kinds(),
	})
}
