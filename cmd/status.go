package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusYAML bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Query the daemon for its run state and the registered trigger record
builder endpoints with their occupancy, busy and error flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newControlClient()
		resp, err := client.Call(context.Background(), "daemon_status", nil)
		if err != nil {
			return fmt.Errorf("daemon is not running or socket is inaccessible: %w", err)
		}

		var out []byte
		if statusYAML {
			out, err = yaml.Marshal(resp.Result)
		} else {
			out, err = json.MarshalIndent(resp.Result, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("failed to format result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusYAML, "yaml", false, "render the status as YAML")
	rootCmd.AddCommand(statusCmd)
}
