package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"daqflow.xyz/dfo/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the daemon.

Checks the dispatch options (including busy/free threshold consistency),
the connection names and the logging settings.

Examples:
  dfo validate -c /etc/dfo/dfo.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("INVALID: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"VALID: busy=%d free=%d retries=%d, %d TRB output(s), simulation=%v\n",
			cfg.Dispatcher.BusyThreshold,
			cfg.Dispatcher.FreeThreshold,
			cfg.Dispatcher.TDSendRetries,
			len(cfg.Connections.TRBOutputs),
			cfg.Simulation.Enabled,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
