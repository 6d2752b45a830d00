package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var scrapCmd = &cobra.Command{
	Use:   "scrap",
	Short: "Clear the endpoint registry",
	Long: `Send the scrap command to the daemon, clearing every registered trigger
record builder endpoint. Valid only once the run has been drained.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newControlClient()
		resp, err := client.Call(context.Background(), "scrap", nil)
		if err != nil {
			return fmt.Errorf("failed to scrap: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %v\n", resp.Result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapCmd)
}
