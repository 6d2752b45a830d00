package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"daqflow.xyz/dfo/internal/command"
)

var runNumber uint32

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a data-taking run",
	Long: `Send the start command to the daemon, opening a data-taking run with the
given run number. The dispatcher zeroes its counters, probes the decision
senders and installs the trigger decision and completion token callbacks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newControlClient()
		resp, err := client.Call(context.Background(), "start",
			command.StartRunParams{Run: runNumber})
		if err != nil {
			return fmt.Errorf("failed to start run: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %v\n", resp.Result)
		return nil
	},
}

func init() {
	runCmd.Flags().Uint32VarP(&runNumber, "run", "r", 0, "run number (required)")
	runCmd.MarkFlagRequired("run")
	rootCmd.AddCommand(runCmd)
}
