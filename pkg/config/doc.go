// Package config loads, validates, and provides access to the proxy
// configuration. Configuration comes from a YAML file, with HERMES_*
// environment variables overriding individual fields so that container
// deployments can run without a file at all.
package config
