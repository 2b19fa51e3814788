package iam

import (
	"context"

	"github.com/WooodHead/yeep/internal/authz"
)

// Store describes the persistence operations the IAM service requires.
// Implementations map storage failures to ErrNotFound / ErrConflict where
// the cause is a missing or duplicate record; everything else propagates
// unchanged so callers fail closed.
type Store interface {
	CreateOrganization(ctx context.Context, name string) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context, scopes authz.ScopeSet) ([]Organization, error)
	AddMember(ctx context.Context, orgID, userID string) (Membership, error)
	RemoveMember(ctx context.Context, orgID, userID string) error
	MembershipsForUser(ctx context.Context, userID string) ([]Membership, error)

	CreateUser(ctx context.Context, username, fullName, email string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, scopes authz.ScopeSet) ([]User, error)

	CreatePermission(ctx context.Context, key, description string, scopeOrgIDs []string) (Permission, error)
	GetPermissionByKey(ctx context.Context, key string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermissions(ctx context.Context, perms []Permission) error

	CreateRole(ctx context.Context, orgID, name, description string, permissionKeys []string) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	ListRoles(ctx context.Context, scopes authz.ScopeSet) ([]Role, error)

	AssignPermission(ctx context.Context, userID, permissionKey, orgID string) (PermissionAssignment, error)
	RevokePermission(ctx context.Context, userID, permissionKey, orgID string) error
	AssignRole(ctx context.Context, userID, roleID, orgID string) (RoleAssignment, error)
	RevokeRole(ctx context.Context, userID, roleID, orgID string) error

	// GrantSource: the read side the permission resolver depends on.
	DirectGrants(ctx context.Context, userID string) ([]authz.Grant, error)
	RoleAssignments(ctx context.Context, userID string) ([]authz.RoleAssignment, error)
}
