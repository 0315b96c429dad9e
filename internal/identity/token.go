package identity

import "time"

// Token types carried in the "type" claim. Access tokens leave it empty.
const (
	TokenTypeAccess  = "ACCESS"
	TokenTypeRefresh = "REFRESH"
)

// TokenType is the OAuth token_type returned to clients.
const TokenType = "Bearer"

// TokenPair is the result of a successful token issuance.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64 // seconds
	RefreshExpiresIn int64 // seconds
	TransactionID    string
}

// TokenClaims is the decoded, signature-checked content of a token.
type TokenClaims struct {
	ID            string
	Subject       string
	TransactionID string
	Authorities   []string
	Type          string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *TokenClaims) IsRefresh() bool {
	return c.Type == TokenTypeRefresh
}

// ValidFor reports whether the token was issued to username and is unexpired at now.
func (c *TokenClaims) ValidFor(username string, now time.Time) bool {
	return c.Subject == username && now.Before(c.ExpiresAt)
}
