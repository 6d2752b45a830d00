package cmd

import (
	"github.com/spf13/cobra"

	"daqflow.xyz/dfo/internal/daemon"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the orchestrator daemon",
	Long: `Start the DFO daemon in the foreground.

The daemon loads the configuration file, starts the metrics server and the
control socket, and waits for run control commands. With simulation enabled
in the configuration it also spawns one fake trigger record builder per
configured endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New(configFile, socketPath, pidFile)
		if err != nil {
			return err
		}
		if err := d.Start(); err != nil {
			return err
		}
		return d.Run()
	},
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "override the configured PID file path")
	rootCmd.AddCommand(startCmd)
}
