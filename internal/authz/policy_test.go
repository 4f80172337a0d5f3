package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/teamz-workspace/apiserver/types"
)

func profileWith(role types.Role, verified bool) *types.Profile {
	return &types.Profile{Role: role, Verified: verified}
}

func TestEvaluatePublicRoute(t *testing.T) {
	req := Requirement{}

	assert.Equal(t, Authorized, Evaluate(false, nil, req))
	assert.Equal(t, Authorized, Evaluate(true, profileWith(types.RoleEmployee, false), req))
}

func TestEvaluateNoPrincipalAlwaysRedirectsLogin(t *testing.T) {
	requirements := []Requirement{
		{RequiresAuth: true},
		{RequiresAuth: true, RequiresVerification: true},
		{RequiresAuth: true, RequiresVerification: true, RequiredRole: types.RoleAdmin},
		{RequiresAuth: true, RequiredRole: types.RoleManager},
	}

	for _, req := range requirements {
		// Any profile state is irrelevant without a principal.
		assert.Equal(t, RedirectLogin, Evaluate(false, nil, req))
		assert.Equal(t, RedirectLogin, Evaluate(false, profileWith(types.RoleAdmin, true), req))
	}
}

func TestEvaluateVerificationGate(t *testing.T) {
	req := Requirement{RequiresAuth: true, RequiresVerification: true}

	tests := []struct {
		name    string
		profile *types.Profile
		want    Decision
	}{
		{"unverified employee redirected", profileWith(types.RoleEmployee, false), RedirectVerification},
		{"unverified manager redirected", profileWith(types.RoleManager, false), RedirectVerification},
		{"unverified admin exempt", profileWith(types.RoleAdmin, false), Authorized},
		{"verified employee authorized", profileWith(types.RoleEmployee, true), Authorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(true, tt.profile, req))
		})
	}
}

func TestEvaluateRoleGate(t *testing.T) {
	tests := []struct {
		name     string
		role     types.Role
		required types.Role
		want     Decision
	}{
		{"admin passes admin routes", types.RoleAdmin, types.RoleAdmin, Authorized},
		{"admin passes manager routes", types.RoleAdmin, types.RoleManager, Authorized},
		{"admin passes employee routes", types.RoleAdmin, types.RoleEmployee, Authorized},
		{"manager passes employee routes", types.RoleManager, types.RoleEmployee, Authorized},
		{"manager blocked on admin routes", types.RoleManager, types.RoleAdmin, RedirectHome},
		{"employee blocked on manager routes", types.RoleEmployee, types.RoleManager, RedirectHome},
		{"unknown role blocked everywhere", types.Role("intern"), types.RoleEmployee, RedirectHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Requirement{RequiresAuth: true, RequiredRole: tt.required}
			assert.Equal(t, tt.want, Evaluate(true, profileWith(tt.role, true), req))
		})
	}
}

func TestEvaluateAdminBypassesVerificationOnRoleRoutes(t *testing.T) {
	// The admin area demands verification by default; an unverified admin
	// still gets in.
	req := Requirement{RequiresAuth: true, RequiresVerification: true, RequiredRole: types.RoleAdmin}
	assert.Equal(t, Authorized, Evaluate(true, profileWith(types.RoleAdmin, false), req))
}

func TestEvaluateMissingProfileIsPendingNotDenied(t *testing.T) {
	requirements := []Requirement{
		{RequiresAuth: true},
		{RequiresAuth: true, RequiresVerification: true},
		{RequiresAuth: true, RequiredRole: types.RoleAdmin},
	}

	for _, req := range requirements {
		assert.Equal(t, ProfilePending, Evaluate(true, nil, req))
	}
}

func TestSatisfies(t *testing.T) {
	assert.True(t, Satisfies(types.RoleAdmin, types.RoleEmployee))
	assert.True(t, Satisfies(types.RoleManager, types.RoleManager))
	assert.False(t, Satisfies(types.RoleEmployee, types.RoleAdmin))
	assert.False(t, Satisfies(types.Role(""), types.RoleEmployee))
	assert.False(t, Satisfies(types.Role("root"), types.RoleEmployee))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "authorized", Authorized.String())
	assert.Equal(t, "redirect_login", RedirectLogin.String())
	assert.Equal(t, "profile_pending", ProfilePending.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
