package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"foundry-hq/hermes/pkg/cli"
	"foundry-hq/hermes/pkg/config"
	"foundry-hq/hermes/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Validate the configuration file and the model table without starting
the server.

Examples:
  hermes validate
  hermes validate --config /etc/hermes/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	reg, err := registry.Load(cfg)
	if err != nil {
		return cli.NewConfigError("models", err.Error())
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Listen address: %s\n", cfg.ListenAddr())
	fmt.Printf("  Models: %d\n", reg.Len())
	for _, id := range reg.IDs() {
		m, err := reg.Resolve(id)
		if err != nil {
			return cli.NewCommandError("validate", err)
		}
		fmt.Printf("    %s -> %s (filter: %t)\n", m.ID, m.ChatCompletionsURL(), m.StripThinkTags)
	}
	fmt.Printf("  Audit backend: %s\n", cfg.Audit.Backend)
	fmt.Printf("  TLS: %t\n", cfg.TLS.Enabled)
	return nil
}
