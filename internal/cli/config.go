package cli

import (
	"github.com/spf13/cobra"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		shown := *c
		if shown.OpenSearch.Password != "" {
			shown.OpenSearch.Password = redacted
		}
		if shown.Redis.Password != "" {
			shown.Redis.Password = redacted
		}
		return printOutput(cmd.OutOrStdout(), shown)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}
