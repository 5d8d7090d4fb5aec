package domain

import (
	"strings"
	"time"
)

// User represents an account that owns items and tags.
type User struct {
	Record
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"` // Stored hashed, filter from API responses
	IsVerified   bool      `json:"is_verified"`
	IsAdmin      bool      `json:"is_admin"`
	LastLoginAt  time.Time `json:"last_login_at,omitzero"`
}

// NormalizeEmail lowercases and trims an email for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
