package domain

import "strings"

// Role is the organisational role carried by an authenticated actor.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleManager  Role = "manager"
	RoleStaff    Role = "staff"
)

// ParseRole normalises a role claim. Unknown values are kept verbatim so they
// fail authorization checks rather than being mapped onto a real role.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID         UserID
	OrganisationID OrganisationID
	Role           Role
	Name           string
	Email          string
}

// IsAuthenticated reports whether the actor carries a user id.
func (a Actor) IsAuthenticated() bool {
	return !a.UserID.IsNil()
}

// CanManageOverrides reports whether the actor may create or revoke
// compliance overrides.
func (a Actor) CanManageOverrides() bool {
	if !a.IsAuthenticated() {
		return false
	}
	return a.Role == RoleAdmin || a.Role == RoleDirector
}
