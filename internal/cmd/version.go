package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "version")
		defer span.End()

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Checkoutly %s\n", resolvedVersion())
		fmt.Fprintf(w, "Commit: %s\n", Commit)
		fmt.Fprintf(w, "Built:  %s\n", BuildDate)
		fmt.Fprintf(w, "Go:     %s\n", runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
