package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goruled/internal/cli"
	"github.com/TimurManjosov/goruled/internal/client"
	"github.com/TimurManjosov/goruled/internal/rules"
)

var listTarget string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules",
	Long: `List all rules known to the service.

Examples:
  ruled list --env prod
  ruled list --env prod --format json
  ruled list --target book`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		all, err := c.ListRules(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}

		if listTarget != "" {
			var filtered []rules.Rule
			for _, r := range all {
				if r.TargetEntityType == listTarget {
					filtered = append(filtered, r)
				}
			}
			all = filtered
		}

		if !quiet {
			if len(all) == 0 {
				fmt.Println("No rules found")
				return nil
			}
			return cli.PrintRules(all, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listTarget, "target", "", "Show only rules targeting this entity type")
}
