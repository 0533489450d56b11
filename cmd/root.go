// Package cmd implements the astral command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "astral",
	Short: "Astral Assist, an HR knowledge assistant",
	Long: `Astral Assist answers natural-language questions over an organization's
document corpus with retrieval-augmented generation, and recognizes email
commands embedded in conversational input.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Errors are printed once, here.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
