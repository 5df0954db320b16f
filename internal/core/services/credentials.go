package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure CredentialsService implements the interface.
var _ driving.CredentialsService = (*CredentialsService)(nil)

// CredentialsService manages stored provider credentials.
type CredentialsService struct {
	store      driven.CredentialStore
	authorizer driven.Authorizer
}

// NewCredentialsService creates a new credentials service.
// authorizer may be nil, which disables the OAuth connect flow.
func NewCredentialsService(store driven.CredentialStore, authorizer driven.Authorizer) *CredentialsService {
	return &CredentialsService{
		store:      store,
		authorizer: authorizer,
	}
}

// Get retrieves a user's credential.
func (s *CredentialsService) Get(ctx context.Context, userID string) (*domain.UserCredential, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.store.Find(ctx, userID)
}

// ConnectSink stores a static sink API key. An API key does not expire,
// so any stored sink refresh token and expiry are cleared.
func (s *CredentialsService) ConnectSink(ctx context.Context, userID, apiKey, apiURL string) error {
	userID = strings.TrimSpace(userID)
	apiKey = strings.TrimSpace(apiKey)
	if userID == "" || apiKey == "" {
		return fmt.Errorf("%w: user id and api key are required", domain.ErrInvalidInput)
	}

	update := domain.TokenUpdate(domain.ProviderSink, domain.TokenSet{AccessToken: apiKey})
	if apiURL = strings.TrimSpace(apiURL); apiURL != "" {
		u, err := url.Parse(apiURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: api url must be an absolute http(s) URL", domain.ErrInvalidInput)
		}
		update.SinkAPIURL = &apiURL
	}

	return s.store.Upsert(ctx, userID, update)
}

// BeginConnect generates the state and PKCE verifier for a new flow and
// builds the provider's consent URL.
func (s *CredentialsService) BeginConnect(provider domain.Provider, redirectURI string) (*driving.OAuthFlowState, error) {
	if s.authorizer == nil {
		return nil, fmt.Errorf("%w: oauth is not configured", domain.ErrInvalidInput)
	}
	if !provider.IsValid() {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	if redirectURI == "" {
		return nil, fmt.Errorf("%w: redirect uri is required", domain.ErrInvalidInput)
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	authURL, err := s.authorizer.AuthCodeURL(provider, state, verifier, redirectURI)
	if err != nil {
		return nil, err
	}

	return &driving.OAuthFlowState{
		Provider:     provider,
		AuthURL:      authURL,
		CodeVerifier: verifier,
		State:        state,
		RedirectURI:  redirectURI,
	}, nil
}

// CompleteConnect redeems the authorization code and stores the provider's
// tokens for the user.
func (s *CredentialsService) CompleteConnect(
	ctx context.Context,
	flow *driving.OAuthFlowState,
	userID, code string,
) (string, error) {
	if s.authorizer == nil {
		return "", fmt.Errorf("%w: oauth is not configured", domain.ErrInvalidInput)
	}
	if flow == nil {
		return "", fmt.Errorf("%w: no oauth flow in progress", domain.ErrInvalidInput)
	}

	grant, err := s.authorizer.Exchange(ctx, flow.Provider, code, flow.CodeVerifier, flow.RedirectURI)
	if err != nil {
		return "", err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = grant.AccountID
	}
	if userID == "" {
		return "", fmt.Errorf("%w: provider returned no account id, pass a user id", domain.ErrInvalidInput)
	}

	if err := s.store.Upsert(ctx, userID, grant.Credential()); err != nil {
		return "", fmt.Errorf("store %s tokens: %w", flow.Provider, err)
	}

	logger.With("provider", flow.Provider.String(), "user_id", userID).Info("provider connected")
	return userID, nil
}
