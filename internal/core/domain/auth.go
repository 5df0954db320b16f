package domain

// AuthorizationGrant is the outcome of exchanging an OAuth authorization code.
type AuthorizationGrant struct {
	Provider Provider
	Tokens   TokenSet
	// AccountID is the provider's id for the authorising account. Empty when
	// the token response did not carry one.
	AccountID string
}

// Credential returns the update that stores the grant's tokens.
func (g *AuthorizationGrant) Credential() CredentialUpdate {
	return TokenUpdate(g.Provider, g.Tokens)
}
