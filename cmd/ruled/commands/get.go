package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goruled/internal/cli"
	"github.com/TimurManjosov/goruled/internal/client"
)

var getCmd = &cobra.Command{
	Use:   "get <rule-id>",
	Short: "Get a single rule",
	Long: `Get a single rule by its ID.

Examples:
  ruled get 2f1c0b3a-... --env prod
  ruled get 2f1c0b3a-... --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		rule, err := c.GetRule(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get rule: %w", err)
		}

		if !quiet {
			return cli.PrintRule(rule, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
