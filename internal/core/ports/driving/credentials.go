package driving

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// OAuthFlowState holds the state for an OAuth flow in progress.
// Driving adapters keep it between BeginConnect and CompleteConnect.
type OAuthFlowState struct {
	Provider domain.Provider

	// AuthURL is the URL to open in the browser for user authorisation.
	AuthURL string

	// CodeVerifier is the PKCE code verifier for token exchange.
	CodeVerifier string

	// State is the OAuth state parameter for CSRF protection.
	State string

	// RedirectURI is the callback URL registered with the provider.
	RedirectURI string
}

// CredentialsService manages stored provider credentials for operators.
type CredentialsService interface {
	// Get retrieves a user's credential.
	Get(ctx context.Context, userID string) (*domain.UserCredential, error)

	// ConnectSink stores a sink API key, and optionally an API URL override,
	// for a user. An empty apiURL leaves the stored URL unchanged.
	ConnectSink(ctx context.Context, userID, apiKey, apiURL string) error

	// BeginConnect starts an authorization_code flow for provider.
	BeginConnect(provider domain.Provider, redirectURI string) (*OAuthFlowState, error)

	// CompleteConnect redeems code and stores the tokens. An empty userID
	// falls back to the provider's account id. It returns the user id the
	// tokens were stored under.
	CompleteConnect(ctx context.Context, flow *OAuthFlowState, userID, code string) (string, error)
}
