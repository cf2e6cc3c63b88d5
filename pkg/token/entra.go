package token

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"foundry-hq/hermes/pkg/config"
)

// EntraSource acquires tokens from an Azure credential for a fixed scope.
// In a deployed pod the credential is the workload's managed identity; for
// local development the default chain picks up az login or environment
// credentials.
type EntraSource struct {
	credential azcore.TokenCredential
	scope      string
}

// NewEntraSource builds a source from the upstream configuration.
func NewEntraSource(cfg config.UpstreamConfig) (*EntraSource, error) {
	var (
		cred azcore.TokenCredential
		err  error
	)
	switch cfg.Credential {
	case config.CredentialManagedIdentity:
		opts := &azidentity.ManagedIdentityCredentialOptions{}
		if cfg.ManagedIdentityClientID != "" {
			opts.ID = azidentity.ClientID(cfg.ManagedIdentityClientID)
		}
		cred, err = azidentity.NewManagedIdentityCredential(opts)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	return NewEntraSourceFromCredential(cred, cfg.Scope), nil
}

// NewEntraSourceFromCredential wraps an existing credential. Used by tests
// and by callers that construct their own credential chain.
func NewEntraSourceFromCredential(cred azcore.TokenCredential, scope string) *EntraSource {
	return &EntraSource{credential: cred, scope: scope}
}

// Token requests a fresh token from the credential.
func (s *EntraSource) Token(ctx context.Context) (Token, error) {
	at, err := s.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{s.scope}})
	if err != nil {
		return Token{}, &AcquisitionError{Scope: s.scope, Cause: err}
	}
	return Token{Value: at.Token, ExpiresOn: at.ExpiresOn}, nil
}
