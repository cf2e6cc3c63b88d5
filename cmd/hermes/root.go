package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"foundry-hq/hermes/pkg/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "Hermes - OpenAI-compatible proxy for Azure AI Foundry",
	Long: `Hermes is a reverse proxy that exposes Azure AI Foundry deployments
behind the OpenAI chat completions API.

It provides:
  - Shared-secret bearer authentication for clients
  - Entra ID token acquisition and caching for the upstream
  - Removal of <think> reasoning regions from streamed and buffered output
  - Per-model routing to Foundry deployments
  - Request audit trail with retention, Prometheus metrics, OTLP tracing`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultConfig := config.DefaultPath
	if env := os.Getenv("HERMES_CONFIG"); env != "" {
		defaultConfig = env
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfig, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "force debug logging")
}
