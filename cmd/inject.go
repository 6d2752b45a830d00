package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"daqflow.xyz/dfo/internal/command"
)

var (
	injectCount       int
	injectTriggerType uint64
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Inject synthetic trigger decisions",
	Long: `Feed synthetic trigger decisions into the dispatcher's decision input.
Useful in simulation mode to exercise the assignment and completion path
end to end. A run must be active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newControlClient()
		resp, err := client.Call(context.Background(), "inject", command.InjectParams{
			Count:       injectCount,
			TriggerType: injectTriggerType,
		})
		if err != nil {
			return fmt.Errorf("failed to inject: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %v\n", resp.Result)
		return nil
	},
}

func init() {
	injectCmd.Flags().IntVarP(&injectCount, "count", "n", 1, "number of decisions to inject")
	injectCmd.Flags().Uint64Var(&injectTriggerType, "trigger-type", 0,
		"trigger type bitmask (default: kRandom)")
	rootCmd.AddCommand(injectCmd)
}
