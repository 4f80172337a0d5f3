package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is a profile's authorization level within the workspace.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Profile is the workspace-specific record associated one-to-one with a
// Principal. It is created by a database trigger when the principal row is
// inserted, so immediately after signup it may briefly not exist yet.
type Profile struct {
	// ID equals the owning principal's ID.
	ID uuid.UUID `json:"id" db:"id"`

	// FullName is the member's display name.
	FullName string `json:"full_name" db:"full_name"`

	// CubizID is the workspace-scoped member identifier shown in the UI.
	CubizID string `json:"cubiz_id" db:"cubiz_id"`

	// Role is the member's authorization level.
	Role Role `json:"role" db:"role"`

	// Department the member belongs to.
	Department string `json:"department" db:"department"`

	// Location is the member's free-form office/location string.
	Location string `json:"location" db:"location"`

	// UpiID is the member's payment identifier.
	UpiID string `json:"upi_id" db:"upi_id"`

	// AvatarURL points at the member's avatar object, if uploaded.
	AvatarURL string `json:"avatar_url" db:"avatar_url"`

	// Verified is set by an admin to unlock most of the workspace.
	Verified bool `json:"verified" db:"verified"`

	// JoinedAt is when the member joined the workspace.
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`

	// Bio is the member's free-form biography.
	Bio string `json:"bio" db:"bio"`

	// Skills is the member's self-reported skill list.
	Skills []string `json:"skills" db:"skills"`

	// RankPoints is the promotion-eligibility score. Only mutated through
	// the atomic increment operation, never written wholesale.
	RankPoints int `json:"rank_points" db:"rank_points"`
}

// ProfilePatch is a partial profile update. Nil fields are left untouched.
// Role, Verified and RankPoints are deliberately absent: those change only
// through dedicated admin operations.
type ProfilePatch struct {
	FullName   *string  `json:"full_name,omitempty"`
	Department *string  `json:"department,omitempty"`
	Location   *string  `json:"location,omitempty"`
	UpiID      *string  `json:"upi_id,omitempty"`
	AvatarURL  *string  `json:"avatar_url,omitempty"`
	Bio        *string  `json:"bio,omitempty"`
	Skills     []string `json:"skills,omitempty"`
}
