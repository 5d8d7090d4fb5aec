package domain

import "time"

// TokenType distinguishes what a stored token authorizes.
type TokenType string

const (
	// TokenVerification confirms ownership of an email address.
	TokenVerification TokenType = "verification"
	// TokenReset allows setting a new password.
	TokenReset TokenType = "reset"
	// TokenRefresh exchanges for a new access token.
	TokenRefresh TokenType = "refresh"
)

// Token is a stored single-purpose secret. Only the hash of the secret is kept;
// the plaintext is handed to the user once (by email or in a login response).
type Token struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      TokenType `json:"type"`
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the token is no longer usable at now.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
