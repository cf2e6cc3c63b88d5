// Package cli provides shared helpers for the hermes command line:
// output formatting, shutdown signal handling, and command error types.
package cli
