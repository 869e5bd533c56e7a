package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goruled/internal/cli"
	"github.com/TimurManjosov/goruled/internal/client"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the notification template catalog",
	Long: `List the notification templates the notify action can reference.

Examples:
  ruled templates --env prod
  ruled templates --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		choices, err := c.ListTemplates(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}

		if !quiet {
			if len(choices) == 0 {
				fmt.Println("No templates found")
				return nil
			}
			return cli.PrintTemplates(choices, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
