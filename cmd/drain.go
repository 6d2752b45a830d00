package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Drain and stop the current run",
	Long: `Send the drain_dataflow command to the daemon. The dispatcher stops
accepting new trigger decisions, waits up to the configured stop timeout for
outstanding assignments to complete, then flushes the remnants and reports
each one as an incomplete trigger decision.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newControlClient()
		resp, err := client.Call(context.Background(), "drain_dataflow", nil)
		if err != nil {
			return fmt.Errorf("failed to drain: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %v\n", resp.Result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(drainCmd)
}
