package driven

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// Authorizer runs the authorization_code grant against a provider.
type Authorizer interface {
	// AuthCodeURL returns the consent page URL. verifier is the PKCE code
	// verifier and is ignored by providers that do not use PKCE.
	AuthCodeURL(provider domain.Provider, state, verifier, redirectURI string) (string, error)

	// Exchange trades an authorization code for tokens. redirectURI must
	// match the one used for AuthCodeURL.
	Exchange(ctx context.Context, provider domain.Provider, code, verifier, redirectURI string) (*domain.AuthorizationGrant, error)
}
