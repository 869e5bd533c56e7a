package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goruled/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage ruled CLI configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.ruled/config.yaml

Example:
  ruled config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.InitConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		configPath, _ := cli.GetConfigPath()
		fmt.Printf("Configuration file created at: %s\n", configPath)
		fmt.Println("\nPlease edit the file to set your API keys and base URLs.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long: `Display the current configuration.

Example:
  ruled config list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("Default Environment: %s\n\n", cfg.DefaultEnv)
		fmt.Println("Environments:")
		for name, envCfg := range cfg.Environments {
			fmt.Printf("  %s:\n", name)
			fmt.Printf("    base_url: %s\n", envCfg.BaseURL)
			// Mask API key for security
			maskedKey := "***"
			if len(envCfg.APIKey) > 4 {
				maskedKey = envCfg.APIKey[:4] + "***"
			}
			fmt.Printf("    api_key: %s\n", maskedKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
}
