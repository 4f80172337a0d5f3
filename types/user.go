package types

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider identifies how a principal authenticates.
type AuthProvider string

const (
	ProviderPassword AuthProvider = "password"
	ProviderGoogle   AuthProvider = "google"
	ProviderGitHub   AuthProvider = "github"
	ProviderApple    AuthProvider = "apple"
)

// Principal is the authenticated identity record. It carries credentials and
// provider metadata only; everything workspace-specific lives on Profile.
type Principal struct {
	// ID is the unique identifier of the principal.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the principal's email address, unique across the workspace.
	Email string `json:"email" db:"email"`

	// Provider records which auth mechanism created this principal.
	Provider AuthProvider `json:"provider" db:"provider"`

	// PasswordHash stores the bcrypt hash for password principals. Empty for
	// OAuth principals. Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the principal was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the principal.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
