package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goruled/internal/cli"
	"github.com/TimurManjosov/goruled/internal/client"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Long: `Delete a rule with its condition and action. A signal condition's
subscription is disconnected once the deletion commits.

Examples:
  ruled delete 2f1c0b3a-... --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		if err := c.DeleteRule(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete rule: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully deleted rule '%s'\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
