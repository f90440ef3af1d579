package authz

import (
	"strings"

	"github.com/goliatone/go-dealflow/ferrors"
)

// Role is a membership role inside an organization.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
)

// roleLevels is the only source of ordering between roles.
var roleLevels = map[Role]int{
	RoleMember:  1,
	RoleManager: 2,
	RoleAdmin:   3,
	RoleOwner:   4,
}

// Roles lists every role from lowest to highest.
func Roles() []Role {
	return []Role{RoleMember, RoleManager, RoleAdmin, RoleOwner}
}

// Level returns the hierarchy level; unknown roles report 0.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// AtLeast reports whether r is at or above required. Unknown roles never
// satisfy a requirement.
func (r Role) AtLeast(required Role) bool {
	if !r.Valid() {
		return false
	}
	return r.Level() >= required.Level()
}

// Above reports whether r is strictly higher than other.
func (r Role) Above(other Role) bool {
	return r.Valid() && r.Level() > other.Level()
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}

// Compare returns -1, 0 or 1 ordering a against b by level.
func Compare(a, b Role) int {
	la, lb := a.Level(), b.Level()
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}

// ParseRole resolves a role name case-insensitively.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if role.Valid() {
		return role, nil
	}
	return "", ferrors.WrapSentinel(ferrors.ErrInvalidRole, "", map[string]any{
		ferrors.MetaRole: value,
	})
}

// MustParseRole is ParseRole for static configuration.
func MustParseRole(value string) Role {
	role, err := ParseRole(value)
	if err != nil {
		panic(err)
	}
	return role
}
