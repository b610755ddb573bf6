package Models

import "strings"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// RoleContext identifies the caller. It is passed explicitly into every
// filtering and grouping call.
type RoleContext struct {
	Role     Role   `json:"role"`
	Username string `json:"username"`
}

// ParseRole normalises a role claim. Unrecognised values are returned as-is
// so callers can detect them.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

func (r Role) Known() bool {
	return r == RoleAdmin || r == RoleUser
}

func (rc RoleContext) IsAdmin() bool {
	return rc.Role == RoleAdmin
}
