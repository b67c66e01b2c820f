package domain

import "time"

// TokenType distinguishes the two single-use token flows.
type TokenType string

const (
	TokenTypeEmailVerification TokenType = "EMAIL_VERIFICATION"
	TokenTypePasswordReset     TokenType = "PASSWORD_RESET"
)

// Token is a single-use, typed, expiring secret bound to a user. At most
// one live token exists per (UserID, Type); creating a new one supersedes
// any previous token of the same type.
type Token struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Type      TokenType `json:"type" db:"type"`
	Secret    string    `json:"-" db:"secret"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ExpiredAt reports whether the token is expired at the given instant.
// A token is invalid the moment it reaches its expiry timestamp.
func (t *Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
