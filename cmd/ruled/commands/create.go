package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goruled/internal/cli"
	"github.com/TimurManjosov/goruled/internal/client"
)

var (
	createDescription     string
	createTarget          string
	createConditionKind   string
	createConditionParams string
	createActionKind      string
	createActionParams    string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new rule",
	Long: `Create a new rule with an inline condition and action.

Examples:
  ruled create --description "monthly report" \
    --condition-kind day_of_month --condition-params '{"day":1}' \
    --action-kind logger --action-params '{"level":"INFO","message":"new month"}'

  ruled create --description "welcome mail" --target customer \
    --condition-kind signal --condition-params '{"event":"after-create"}' \
    --action-kind notify --action-params '{"recipient":"ops@example.com","subject":"new customer","template":"welcome.txt"}'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		payload := client.RulePayload{
			Description:      createDescription,
			TargetEntityType: createTarget,
		}
		if createConditionKind != "" {
			params, err := parseParams(createConditionParams)
			if err != nil {
				return fmt.Errorf("invalid condition params: %w", err)
			}
			payload.Condition = &client.Attachment{Kind: createConditionKind, Params: params}
		}
		if createActionKind != "" {
			params, err := parseParams(createActionParams)
			if err != nil {
				return fmt.Errorf("invalid action params: %w", err)
			}
			payload.Action = &client.Attachment{Kind: createActionKind, Params: params}
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		created, err := c.CreateRule(context.Background(), payload)
		if err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully created rule '%s'\n", created.ID)
		}
		return nil
	},
}

func parseParams(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, err
	}
	return params, nil
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createDescription, "description", "", "Rule description")
	createCmd.Flags().StringVar(&createTarget, "target", "", "Target entity type (empty for generic rules)")
	createCmd.Flags().StringVar(&createConditionKind, "condition-kind", "", "Condition kind (day_of_month, day_of_week, signal, filter)")
	createCmd.Flags().StringVar(&createConditionParams, "condition-params", "", "Condition params as JSON")
	createCmd.Flags().StringVar(&createActionKind, "action-kind", "", "Action kind (logger, notify, webhook)")
	createCmd.Flags().StringVar(&createActionParams, "action-params", "", "Action params as JSON")
}
