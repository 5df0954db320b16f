// Package oauth performs the OAuth2 authorization_code and refresh_token
// grants against the source and sink token endpoints.
package oauth

import (
	"fmt"
	"mime"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

// DecodeKind names how a token response body was decoded.
type DecodeKind string

const (
	// DecodeKindJSON is the documented application/json response.
	DecodeKindJSON DecodeKind = "json"
	// DecodeKindForm is the url-encoded shape some servers return instead.
	DecodeKindForm DecodeKind = "form"
)

// TokenResponse holds the response from a token exchange.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	// UserID is Fitbit's account id; UID is WakaTime's.
	UserID string `json:"user_id"`
	UID    string `json:"uid"`

	// Kind records which decode path produced the response.
	Kind DecodeKind `json:"-"`
}

// Token converts the response to an oauth2.Token with an absolute expiry
// computed from now. A missing or zero expires_in leaves Expiry zero.
func (r *TokenResponse) Token(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

// AccountID returns the provider's account id for the token owner, if any.
func (r *TokenResponse) AccountID() string {
	if r.UserID != "" {
		return r.UserID
	}
	return r.UID
}

// errorResponse is the RFC 6749 error body.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// decodeTokenResponse parses a 2xx token body. JSON is tried first; a body
// that is not JSON is parsed as url-encoded form values when the content
// type says so or the body carries an access_token field.
func decodeTokenResponse(body []byte, contentType string) (*TokenResponse, error) {
	var resp TokenResponse
	jsonErr := json.Unmarshal(body, &resp)
	if jsonErr == nil {
		if resp.AccessToken == "" {
			return nil, fmt.Errorf("token response has no access_token")
		}
		resp.Kind = DecodeKindJSON
		return &resp, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	values, formErr := url.ParseQuery(strings.TrimSpace(string(body)))
	if formErr != nil || (mediaType != "application/x-www-form-urlencoded" && !values.Has("access_token")) {
		return nil, fmt.Errorf("decode token response: %w", jsonErr)
	}
	if values.Get("access_token") == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	form := &TokenResponse{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		TokenType:    values.Get("token_type"),
		Scope:        values.Get("scope"),
		UserID:       values.Get("user_id"),
		UID:          values.Get("uid"),
		Kind:         DecodeKindForm,
	}
	if v := values.Get("expires_in"); v != "" {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode token response: expires_in %q: %w", v, err)
		}
		form.ExpiresIn = secs
	}
	return form, nil
}

// describeError extracts a readable message from a non-2xx token body.
func describeError(status int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if errResp.Description != "" {
			return fmt.Errorf("token error: %s - %s (status %d)", errResp.Error, errResp.Description, status)
		}
		return fmt.Errorf("token error: %s (status %d)", errResp.Error, status)
	}
	return fmt.Errorf("token request failed with status %d", status)
}
