package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var configShowSource bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long: `Show the effective configuration after merging defaults, config file,
environment variables and flags. Passwords are masked.`,
	Example: `  # Show effective configuration
  tablerizer config show

  # Also show where every value came from
  tablerizer config show --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}

		if configShowSource {
			if configPath != "" {
				fmt.Printf("# Config file: %s\n", configPath)
			} else {
				fmt.Println("# Config file: (none, using defaults)")
			}
		}
		fmt.Print(string(out))

		if configShowSource {
			fmt.Println()
			fmt.Println("# Sources:")
			for _, key := range cfg.SourceKeys() {
				fmt.Printf("#   %-20s %s\n", key, cfg.Sources[key])
			}
		}
		return nil
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "show the config file and the source of every value")
	configCmd.AddCommand(configShowCmd)
}
