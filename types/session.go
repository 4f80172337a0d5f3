package types

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side login session. The JWT handed to the client
// carries the session ID, so revoking the row invalidates the token before
// its expiry.
type Session struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// Active reports whether the session is usable at the given instant.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// AuthEventKind labels auth-state-change events pushed to clients.
type AuthEventKind string

const (
	AuthSignedIn  AuthEventKind = "signed_in"
	AuthSignedOut AuthEventKind = "signed_out"
)

// AuthEvent is broadcast on the auth events channel whenever a principal's
// session state changes, so other tabs/devices can react.
type AuthEvent struct {
	Kind      AuthEventKind `json:"kind"`
	UserID    uuid.UUID     `json:"user_id"`
	SessionID uuid.UUID     `json:"session_id"`
	At        time.Time     `json:"at"`
}
