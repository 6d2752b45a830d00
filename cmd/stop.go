package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Shut down the daemon",
	Long:  `Send the daemon_shutdown command, triggering a graceful stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newControlClient()
		resp, err := client.Call(context.Background(), "daemon_shutdown", nil)
		if err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %v\n", resp.Result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
