package domain

import (
	"strings"

	dErrors "tradeledger/pkg/domain-errors"
)

// Role is the coarse permission class of a user, as reported by the
// identity directory.
type Role string

const (
	RoleBank      Role = "bank"
	RoleCorporate Role = "corporate"
	RoleAuditor   Role = "auditor"
	RoleAdmin     Role = "admin"

	// RoleSystem marks events authored by the service itself. It is never
	// assigned to users.
	RoleSystem Role = "system"
)

// ParseRole validates a role string. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleBank, RoleCorporate, RoleAuditor, RoleAdmin:
		return r, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown role: "+s)
}

// In reports whether r is one of the given roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }
