// Package cmd implements CLI commands using the cobra framework.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	socketPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dfo",
	Short: "DFO - Data flow orchestrator for trigger record building",
	Long: `DFO is the data flow orchestrator of a physics data acquisition pipeline.
It receives trigger decisions from the upstream trigger, assigns each decision
to one of the downstream trigger record builder applications, tracks per-endpoint
occupancy, and raises busy/free inhibits towards the trigger when the dataflow
saturates.

Run control:
  - start the daemon, then drive it with conf / run / drain / scrap
  - simulation mode runs built-in fake trigger record builders
  - metrics are exposed for Prometheus scraping`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/dfo/dfo.yaml",
		"path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/dfo.sock",
		"path to the daemon control socket")
}
