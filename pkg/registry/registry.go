package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"foundry-hq/hermes/pkg/config"
)

// Model is one resolved routing entry: the client-facing ID plus everything
// needed to reach its Foundry deployment.
type Model struct {
	ID               string
	Endpoint         string
	Deployment       string
	StripThinkTags   bool
	MaxTokensDefault int
}

// ChatCompletionsURL returns the upstream chat completions endpoint for
// this model.
func (m Model) ChatCompletionsURL() string {
	return strings.TrimRight(m.Endpoint, "/") + "/chat/completions"
}

// Registry holds the model table. It is immutable after Load, so lookups
// need no locking.
type Registry struct {
	models map[string]Model
	ids    []string
}

// Load builds the registry from the configured models. When the
// configuration names no models, it falls back to a single model described
// by the MODEL_ID, FOUNDRY_ENDPOINT, and FOUNDRY_DEPLOYMENT environment
// variables, which is how single-model container deployments run.
func Load(cfg *config.Config) (*Registry, error) {
	models := make(map[string]Model, len(cfg.Models))

	for id, mc := range cfg.Models {
		strip := true
		if mc.StripThinkTags != nil {
			strip = *mc.StripThinkTags
		}
		maxTokens := mc.MaxTokensDefault
		if maxTokens == 0 {
			maxTokens = config.DefaultMaxTokens
		}
		models[id] = Model{
			ID:               id,
			Endpoint:         mc.Endpoint,
			Deployment:       mc.Deployment,
			StripThinkTags:   strip,
			MaxTokensDefault: maxTokens,
		}
	}

	if len(models) == 0 {
		m, ok := fromEnv()
		if !ok {
			return nil, fmt.Errorf("no models configured: set a models section or MODEL_ID and FOUNDRY_ENDPOINT")
		}
		models[m.ID] = m
	}

	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Registry{models: models, ids: ids}, nil
}

func fromEnv() (Model, bool) {
	id := os.Getenv("MODEL_ID")
	endpoint := os.Getenv("FOUNDRY_ENDPOINT")
	if id == "" || endpoint == "" {
		return Model{}, false
	}
	deployment := os.Getenv("FOUNDRY_DEPLOYMENT")
	if deployment == "" {
		deployment = id
	}
	return Model{
		ID:               id,
		Endpoint:         endpoint,
		Deployment:       deployment,
		StripThinkTags:   true,
		MaxTokensDefault: config.DefaultMaxTokens,
	}, true
}

// Resolve returns the model for the given client-facing ID. Lookup is by
// exact match; aliasing and fuzzy matching are deliberately absent.
func (r *Registry) Resolve(id string) (Model, error) {
	m, ok := r.models[id]
	if !ok {
		return Model{}, &ModelNotConfiguredError{Requested: id, Known: r.IDs()}
	}
	return m, nil
}

// IDs returns the configured model IDs in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len returns the number of configured models.
func (r *Registry) Len() int {
	return len(r.models)
}
