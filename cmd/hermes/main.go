// Hermes is an OpenAI-compatible proxy for Azure AI Foundry deployments.
//
// It terminates client bearer authentication against a shared secret,
// injects Entra ID tokens on the upstream side, and strips <think>
// reasoning regions from completions before they reach the client.
//
// Usage:
//
//	# Start the proxy with the default configuration file
//	hermes run
//
//	# Start with a custom configuration file
//	hermes run --config /etc/hermes/config.yaml
//
//	# Validate the configuration without serving
//	hermes validate
//
//	# Inspect the audit trail
//	hermes audit list --outcome upstream_error --limit 20
//
//	# Show version information
//	hermes version
package main

import "github.com/joho/godotenv"

func main() {
	// Pick up a .env file when present; running without one is normal.
	_ = godotenv.Load()
	Execute()
}
