package domain

import (
	"errors"
	"slices"
)

// Role is a discrete principal role.
type Role string

const (
	// RoleAdmin bypasses ownership checks.
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

var ErrInvalidRole = errors.New("domain: invalid role")

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleManager, RoleMember}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return slices.Contains(Roles, r) }

// ParseRole converts a stored role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// BypassesOwnership reports whether r may act on resources owned by others.
func (r Role) BypassesOwnership() bool { return r == RoleAdmin }

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleManager:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Outranks reports whether r sits strictly above other. Administrative
// actions on another account require it.
func (r Role) Outranks(other Role) bool { return r.rank() > other.rank() }
