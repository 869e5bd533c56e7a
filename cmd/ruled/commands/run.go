package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goruled/internal/cli"
	"github.com/TimurManjosov/goruled/internal/client"
	"github.com/TimurManjosov/goruled/internal/engine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scan over the stored cron conditions",
	Long: `Run one scan over the stored cron conditions and print an outcome line
per evaluated rule. Intended as the cron entry point:

  */10 * * * * ruled run --env prod

The exit code is zero whether or not any condition matched; it is non-zero
only when the scan itself fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		report, err := c.RunScan(context.Background())
		if err != nil {
			return fmt.Errorf("failed to run scan: %w", err)
		}

		if quiet {
			return nil
		}
		for _, o := range report.Outcomes {
			printOutcome(o)
		}
		fmt.Printf("scan complete: %d executed, %d outcomes\n", report.Executed, len(report.Outcomes))
		return nil
	},
}

func printOutcome(o engine.Outcome) {
	switch o.Status {
	case engine.StatusExecuted:
		if o.EntityID != "" {
			fmt.Printf("executed  rule=%s entity=%s\n", o.RuleID, o.EntityID)
			return
		}
		fmt.Printf("executed  rule=%s\n", o.RuleID)
	case engine.StatusSkipped:
		fmt.Printf("skipped   condition=%s: %s\n", o.ConditionID, o.Message)
	default:
		fmt.Printf("failed    rule=%s condition=%s: %s\n", o.RuleID, o.ConditionID, o.Message)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
