package services

import (
	"crypto/rand"
	"encoding/base64"
)

// PKCE code verifier length (RFC 7636 recommends 43-128 characters).
const codeVerifierLength = 64

// generateCodeVerifier creates a cryptographically random code verifier for PKCE.
func generateCodeVerifier() (string, error) {
	return randomToken(codeVerifierLength)
}

// generateState creates a random state parameter for CSRF protection.
func generateState() (string, error) {
	return randomToken(32)
}

// randomToken returns n random bytes, base64url encoded without padding.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
