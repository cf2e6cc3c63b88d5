// Package secrets abstracts where the proxy's client-facing shared secret
// comes from. Secrets can be provided inline, through the environment, or
// from files under a watched directory, which is how mounted Kubernetes
// secrets rotate without a restart.
package secrets
