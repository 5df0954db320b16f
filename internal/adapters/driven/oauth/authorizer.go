package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure Authorizer implements the interface.
var _ driven.Authorizer = (*Authorizer)(nil)

// Authorizer builds consent URLs and redeems authorization codes.
type Authorizer struct {
	clients map[domain.Provider]ClientConfig
	http    *http.Client
	now     func() time.Time
}

// NewAuthorizer creates an authorizer. A nil httpClient gets a client with
// DefaultTimeout.
func NewAuthorizer(clients map[domain.Provider]ClientConfig, httpClient *http.Client) *Authorizer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Authorizer{
		clients: clients,
		http:    httpClient,
		now:     time.Now,
	}
}

func (a *Authorizer) client(provider domain.Provider) (ClientConfig, error) {
	client, ok := a.clients[provider]
	if !ok {
		return ClientConfig{}, fmt.Errorf("%w: no oauth client for provider %q", domain.ErrInvalidInput, provider)
	}
	if client.ClientID == "" {
		return ClientConfig{}, fmt.Errorf("%w: %s client_id is not configured", domain.ErrInvalidInput, provider)
	}
	return client, nil
}

// AuthCodeURL returns the provider's consent URL.
func (a *Authorizer) AuthCodeURL(provider domain.Provider, state, verifier, redirectURI string) (string, error) {
	client, err := a.client(provider)
	if err != nil {
		return "", err
	}

	cfg := oauth2.Config{
		ClientID:    client.ClientID,
		Endpoint:    client.Endpoint,
		RedirectURL: redirectURI,
		Scopes:      client.Scopes,
	}
	var opts []oauth2.AuthCodeOption
	if client.PKCE {
		if verifier == "" {
			return "", fmt.Errorf("%w: %s requires a code verifier", domain.ErrInvalidInput, provider)
		}
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return cfg.AuthCodeURL(state, opts...), nil
}

// Exchange redeems code for tokens.
func (a *Authorizer) Exchange(
	ctx context.Context,
	provider domain.Provider,
	code, verifier, redirectURI string,
) (*domain.AuthorizationGrant, error) {
	client, err := a.client(provider)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is empty", domain.ErrInvalidInput)
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)
	if client.PKCE && verifier != "" {
		data.Set("code_verifier", verifier)
	}

	resp, err := postToken(ctx, a.http, client, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrAuthorizationFailed, provider, err)
	}
	if resp.Kind == DecodeKindForm {
		logger.With("provider", provider.String()).Warn("token response decoded from url-encoded form")
	}

	tok := resp.Token(a.now())
	return &domain.AuthorizationGrant{
		Provider: provider,
		Tokens: domain.TokenSet{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Expiry:       tok.Expiry,
		},
		AccountID: resp.AccountID(),
	}, nil
}
