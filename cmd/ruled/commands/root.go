package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ruled",
	Short: "CLI tool for managing condition/action rules",
	Long: `Ruled is a command-line tool for managing rules in the goruled service.

It provides commands for creating, reading and deleting rules, browsing the
notification template catalog, and running the periodic condition scan. The
run command is the intended cron entry point.

Examples:
  ruled list --env prod
  ruled create --description "monthly report" --condition-kind day_of_month --condition-params '{"day":1}' --action-kind logger --action-params '{"level":"INFO","message":"new month"}'
  ruled get 2f1c... --format json
  ruled run --env prod
  ruled templates`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the goruled API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Deployment environment (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
