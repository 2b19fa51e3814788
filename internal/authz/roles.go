package authz

import "fmt"

// Role is a named bundle of permission references. Roles do not nest.
type Role struct {
	ID          string
	Name        string
	Permissions []string
}

// RoleAssignment binds a role to a principal at an org scope. The scope of
// the assignment, not of the role definition, decides where the role's
// permissions apply: one role can be reused across orgs.
type RoleAssignment struct {
	Role  Role
	OrgID string
}

// ExpandRole flattens a role into its permission names.
func ExpandRole(role *Role) ([]string, error) {
	if role == nil || role.Permissions == nil {
		return nil, fmt.Errorf("%w: role is missing its permission list", ErrInvalidInput)
	}
	return role.Permissions, nil
}
