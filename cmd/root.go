// Package cmd defines and implements the CLI commands for the jobpipeline
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobpipeline",
		Short: "Ingests and enriches job postings from the Adzuna search API.",
		Long: `jobpipeline ingests job postings from the Adzuna search API, resolves
their tracking URLs to true origin URLs through a rotating proxy, and
extracts full description text from the origin pages. Partial failures
are expected and handled by a fault-rate retry loop; residual failures
are surfaced in the saved record sets, not as errors.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
