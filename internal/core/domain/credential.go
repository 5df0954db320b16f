package domain

import (
	"strings"
	"time"
)

// DefaultSinkAPIURL is used when a credential has no sink API URL override.
const DefaultSinkAPIURL = "https://api.wakatime.com"

// Provider identifies one of the two OAuth providers a user is connected to.
type Provider string

const (
	// ProviderSource is the fitness API sleep data is read from.
	ProviderSource Provider = "source"
	// ProviderSink is the productivity API records are published to.
	ProviderSink Provider = "sink"
)

// IsValid returns true if the provider is recognised.
func (p Provider) IsValid() bool {
	return p == ProviderSource || p == ProviderSink
}

// String returns the string representation.
func (p Provider) String() string {
	return string(p)
}

// UserCredential is one user's stored OAuth state for both providers.
// A zero expiry means the token has no known expiry.
type UserCredential struct {
	// UserID is the stable user identifier (primary key).
	UserID string `json:"user_id"`

	SourceAccessToken  string    `json:"source_access_token"`
	SourceRefreshToken string    `json:"source_refresh_token,omitempty"`
	SourceTokenExpiry  time.Time `json:"source_token_expiry,omitempty"`

	// SinkAccessToken is empty when the user has not connected the sink.
	SinkAccessToken  string    `json:"sink_access_token,omitempty"`
	SinkRefreshToken string    `json:"sink_refresh_token,omitempty"`
	SinkTokenExpiry  time.Time `json:"sink_token_expiry,omitempty"`
	// SinkAPIURL overrides DefaultSinkAPIURL when set.
	SinkAPIURL string `json:"sink_api_url,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TokenSet is the access/refresh/expiry triple for one provider.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Expired reports whether the token has a known expiry at or before now.
func (t TokenSet) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !t.Expiry.After(now)
}

// Tokens returns the token set for p.
func (c *UserCredential) Tokens(p Provider) TokenSet {
	if p == ProviderSink {
		return TokenSet{
			AccessToken:  c.SinkAccessToken,
			RefreshToken: c.SinkRefreshToken,
			Expiry:       c.SinkTokenExpiry,
		}
	}
	return TokenSet{
		AccessToken:  c.SourceAccessToken,
		RefreshToken: c.SourceRefreshToken,
		Expiry:       c.SourceTokenExpiry,
	}
}

// HasSourceToken returns true if a source access token is stored.
// Credentials without one are never synced.
func (c *UserCredential) HasSourceToken() bool {
	return strings.TrimSpace(c.SourceAccessToken) != ""
}

// IsEligible reports whether the credential should be selected for a
// sync-all cycle: a non-empty source access token that is either still
// valid, has no expiry, or can be refreshed.
func (c *UserCredential) IsEligible(now time.Time) bool {
	if !c.HasSourceToken() {
		return false
	}
	src := c.Tokens(ProviderSource)
	return !src.Expired(now) || src.RefreshToken != ""
}

// SinkConnected returns true if the user has a sink access token.
func (c *UserCredential) SinkConnected() bool {
	return strings.TrimSpace(c.SinkAccessToken) != ""
}

// SinkBaseURL returns the sink API base URL without a trailing slash.
func (c *UserCredential) SinkBaseURL() string {
	base := strings.TrimSpace(c.SinkAPIURL)
	if base == "" {
		base = DefaultSinkAPIURL
	}
	return strings.TrimRight(base, "/")
}

// Apply writes the non-nil fields of u onto c.
func (c *UserCredential) Apply(u CredentialUpdate) {
	if u.SourceAccessToken != nil {
		c.SourceAccessToken = *u.SourceAccessToken
	}
	if u.SourceRefreshToken != nil {
		c.SourceRefreshToken = *u.SourceRefreshToken
	}
	if u.SourceTokenExpiry != nil {
		c.SourceTokenExpiry = *u.SourceTokenExpiry
	}
	if u.SinkAccessToken != nil {
		c.SinkAccessToken = *u.SinkAccessToken
	}
	if u.SinkRefreshToken != nil {
		c.SinkRefreshToken = *u.SinkRefreshToken
	}
	if u.SinkTokenExpiry != nil {
		c.SinkTokenExpiry = *u.SinkTokenExpiry
	}
	if u.SinkAPIURL != nil {
		c.SinkAPIURL = *u.SinkAPIURL
	}
}

// CredentialUpdate is a partial update of a UserCredential.
// Nil fields are left untouched; a pointer to a zero time clears an expiry.
type CredentialUpdate struct {
	SourceAccessToken  *string
	SourceRefreshToken *string
	SourceTokenExpiry  *time.Time

	SinkAccessToken  *string
	SinkRefreshToken *string
	SinkTokenExpiry  *time.Time
	SinkAPIURL       *string
}

// IsEmpty returns true if the update changes nothing.
func (u CredentialUpdate) IsEmpty() bool {
	return u == CredentialUpdate{}
}

// TokenUpdate builds the update that persists tokens for provider p.
// Access token, refresh token and expiry are always written together.
func TokenUpdate(p Provider, tokens TokenSet) CredentialUpdate {
	access, refresh, expiry := tokens.AccessToken, tokens.RefreshToken, tokens.Expiry
	if p == ProviderSink {
		return CredentialUpdate{
			SinkAccessToken:  &access,
			SinkRefreshToken: &refresh,
			SinkTokenExpiry:  &expiry,
		}
	}
	return CredentialUpdate{
		SourceAccessToken:  &access,
		SourceRefreshToken: &refresh,
		SourceTokenExpiry:  &expiry,
	}
}

// SetTokens replaces the token set for p in memory.
func (c *UserCredential) SetTokens(p Provider, tokens TokenSet) {
	c.Apply(TokenUpdate(p, tokens))
}
