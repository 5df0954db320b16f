package oauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure Refresher implements the interface.
var _ driven.TokenRefresher = (*Refresher)(nil)

// DefaultTimeout bounds one token request.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a token response is read.
const maxBodySize = 1 << 20

// FallbackLifetime is the expiry given to a refreshed token whose
// response omits expires_in. A zero expiry would mean "never expires"
// and stop lazy refresh for a token already known to expire.
const FallbackLifetime = time.Hour

// ClientConfig is one provider's OAuth client registration. The endpoint's
// AuthStyle decides how client credentials travel: AuthStyleInHeader sends
// HTTP Basic auth, AuthStyleInParams sends client_id, client_secret and
// redirect_uri in the form body. Scopes and PKCE only matter for the
// authorization_code grant.
type ClientConfig struct {
	Endpoint     oauth2.Endpoint
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	PKCE         bool
}

// Refresher performs refresh_token grants and persists the results.
type Refresher struct {
	store   driven.CredentialStore
	clients map[domain.Provider]ClientConfig
	http    *http.Client
	now     func() time.Time
}

// NewRefresher creates a refresher. A nil httpClient gets a client with
// DefaultTimeout.
func NewRefresher(
	store driven.CredentialStore,
	clients map[domain.Provider]ClientConfig,
	httpClient *http.Client,
) *Refresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Refresher{
		store:   store,
		clients: clients,
		http:    httpClient,
		now:     time.Now,
	}
}

// Refresh exchanges cred's refresh token for provider and persists the
// new access token, refresh token and expiry in one update.
func (r *Refresher) Refresh(
	ctx context.Context,
	provider domain.Provider,
	cred *domain.UserCredential,
) (*domain.UserCredential, error) {
	fail := func(err error) (*domain.UserCredential, error) {
		return nil, &domain.RefreshError{Provider: provider, UserID: cred.UserID, Err: err}
	}

	client, ok := r.clients[provider]
	if !ok {
		return fail(fmt.Errorf("%w: no oauth client for provider %q", domain.ErrInvalidInput, provider))
	}

	current := cred.Tokens(provider)
	if current.RefreshToken == "" {
		return fail(domain.ErrNoRefreshToken)
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", current.RefreshToken)
	if client.Endpoint.AuthStyle == oauth2.AuthStyleInParams && client.RedirectURI != "" {
		data.Set("redirect_uri", client.RedirectURI)
	}

	resp, err := postToken(ctx, r.http, client, data)
	if err != nil {
		return fail(err)
	}
	if resp.Kind == DecodeKindForm {
		logger.With("provider", provider.String(), "user_id", cred.UserID).
			Warn("token response decoded from url-encoded form")
	}

	now := r.now()
	tok := resp.Token(now)
	if tok.Expiry.IsZero() {
		tok.Expiry = now.Add(FallbackLifetime)
		logger.With("provider", provider.String(), "user_id", cred.UserID).
			Warn("refresh response has no expires_in, assuming %s", FallbackLifetime)
	}
	next := domain.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}

	if err := r.store.Upsert(ctx, cred.UserID, domain.TokenUpdate(provider, next)); err != nil {
		return fail(fmt.Errorf("persist tokens: %w", err))
	}

	updated := *cred
	updated.SetTokens(provider, next)
	logger.With("provider", provider.String(), "user_id", cred.UserID).Debug("token refreshed")
	return &updated, nil
}

// postToken posts one grant to the client's token endpoint, adding the
// client credentials the way its AuthStyle asks for.
func postToken(ctx context.Context, httpClient *http.Client, client ClientConfig, data url.Values) (*TokenResponse, error) {
	if client.Endpoint.AuthStyle == oauth2.AuthStyleInParams {
		data.Set("client_id", client.ClientID)
		data.Set("client_secret", client.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.Endpoint.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if client.Endpoint.AuthStyle != oauth2.AuthStyleInParams {
		req.SetBasicAuth(client.ClientID, client.ClientSecret)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, describeError(resp.StatusCode, body)
	}

	return decodeTokenResponse(body, resp.Header.Get("Content-Type"))
}
