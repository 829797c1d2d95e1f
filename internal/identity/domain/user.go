package domain

import (
	"slices"
	"strings"
	"time"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2id PHC string, or a legacy bcrypt hash
	Roles        Roles
	IsBlocked    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is one of a closed set of role tags.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// AllRoles lists every role the system knows about.
var AllRoles = []Role{RoleUser, RoleAdmin}

func (r Role) Valid() bool {
	return slices.Contains(AllRoles, r)
}

// Roles is a set of roles. Stored space-delimited.
type Roles []Role

// ParseRoles splits a space-delimited role list. Unknown tags are kept so
// callers can reject them.
func ParseRoles(s string) Roles {
	fields := strings.Fields(s)
	out := make(Roles, 0, len(fields))
	for _, f := range fields {
		out = append(out, Role(f))
	}
	return out
}

// String renders the roles space-delimited for storage.
func (rs Roles) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}

// Effective returns the roles with ROLE_USER added, deduplicated and sorted.
func (rs Roles) Effective() Roles {
	out := Roles{RoleUser}
	for _, r := range rs {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out
}

func (rs Roles) Has(r Role) bool {
	return slices.Contains(rs.Effective(), r)
}

// Strings is the form embedded into access tokens.
func (rs Roles) Strings() []string {
	eff := rs.Effective()
	out := make([]string, len(eff))
	for i, r := range eff {
		out[i] = string(r)
	}
	return out
}
