// Package registry maps client-facing model IDs to Foundry deployments.
// The mapping is fixed at startup: it comes from the models section of the
// configuration, or from MODEL_ID / FOUNDRY_ENDPOINT environment variables
// when no models are configured.
package registry
