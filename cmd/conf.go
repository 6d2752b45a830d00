package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "Apply the dispatcher configuration",
	Long: `Send the conf command to the daemon, re-applying the dispatch options
(queue timeout, stop timeout, busy/free thresholds, send retries) from the
daemon's resolved configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newControlClient()
		resp, err := client.Call(context.Background(), "conf", nil)
		if err != nil {
			return fmt.Errorf("failed to configure: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %v\n", resp.Result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(confCmd)
}
