// Package cmd implements the parley command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - resilient chat API server",
	Long: `Parley serves a stateful chat API backed by an LLM provider.

It keeps per-thread conversation history in memory, guards the model
provider with retries and a circuit breaker, and streams responses over
server-sent events.

Run 'parley serve' to start the HTTP server.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
