package auth

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the access level carried by a token.
type Role string

// Roles, from least to most privileged.
const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// ValidRoles lists every role a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// ParseRole converts a role name, in any case, to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(ValidRoles, r) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermStateRead   Permission = "state:read"
	PermCommandSend Permission = "command:send"
	PermSystemPower Permission = "system:power"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer:   {PermStateRead},
	RoleOperator: {PermStateRead, PermCommandSend},
	RoleAdmin:    {PermStateRead, PermCommandSend, PermSystemPower},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions granted to role, or
// nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
