// Package authz holds the route authorization policy as a pure function of
// session state, so decisions can be tested without a router or database.
package authz

import "github.com/teamz-workspace/apiserver/types"

// roleLevel orders roles into an explicit hierarchy. A role satisfies a
// requirement when its level is at least the required level, which makes
// admin a strict superset of manager and manager of employee, instead of the
// scattered equality checks this replaces.
var roleLevel = map[types.Role]int{
	types.RoleEmployee: 1,
	types.RoleManager:  2,
	types.RoleAdmin:    3,
}

// Satisfies reports whether role meets the required role under the
// hierarchy. Unknown roles never satisfy anything.
func Satisfies(role, required types.Role) bool {
	return roleLevel[role] >= roleLevel[required] && roleLevel[role] > 0
}

// Requirement declares what a route demands from the current session.
// The zero value is a public route.
type Requirement struct {
	RequiresAuth bool
	// RequiresVerification gates the route on the profile's verified flag.
	// Admins are exempt.
	RequiresVerification bool
	// RequiredRole, when set, is the minimum role for the route.
	RequiredRole types.Role
}

// Decision is the outcome of evaluating a Requirement against a session.
type Decision int

const (
	// Authorized means the route may render its content.
	Authorized Decision = iota
	// RedirectLogin means no principal is present.
	RedirectLogin
	// RedirectVerification means the principal's profile is not verified
	// and the route demands verification.
	RedirectVerification
	// RedirectHome means the principal's role does not meet the route's
	// required role.
	RedirectHome
	// ProfilePending means a principal is present but its profile row is
	// not yet readable. Callers should show a placeholder, never deny:
	// denying here would lock out a valid, just-registered user.
	ProfilePending
)

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case RedirectLogin:
		return "redirect_login"
	case RedirectVerification:
		return "redirect_verification"
	case RedirectHome:
		return "redirect_home"
	case ProfilePending:
		return "profile_pending"
	default:
		return "unknown"
	}
}

// Evaluate computes the authorization decision for one navigation. It is
// recomputed on every request and never cached.
func Evaluate(hasPrincipal bool, profile *types.Profile, req Requirement) Decision {
	if !req.RequiresAuth && !req.RequiresVerification && req.RequiredRole == "" {
		return Authorized
	}

	if !hasPrincipal {
		return RedirectLogin
	}

	if profile == nil {
		return ProfilePending
	}

	if req.RequiresVerification && !profile.Verified && profile.Role != types.RoleAdmin {
		return RedirectVerification
	}

	if req.RequiredRole != "" && !Satisfies(profile.Role, req.RequiredRole) {
		return RedirectHome
	}

	return Authorized
}
