package iam

import "time"

const (
	UserStatusActive      = "active"
	UserStatusDeactivated = "deactivated"
)

// Organization is a tenant boundary.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a principal. Users are not owned by a single org; they relate to
// orgs through memberships and scoped grants.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission is a named capability. ScopeOrgIDs, when non-empty, restricts
// the orgs the permission may be granted in.
type Permission struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	ScopeOrgIDs []string  `json:"scope_org_ids,omitempty"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role bundles permissions. An empty OrgID marks a global role definition;
// the scope a role applies at is decided per assignment.
type Role struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership records that a user belongs to an org.
type Membership struct {
	UserID    string    `json:"user_id"`
	OrgID     string    `json:"org_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PermissionAssignment is a direct user→permission grant at an org scope.
// An empty OrgID denotes the global scope.
type PermissionAssignment struct {
	UserID        string    `json:"user_id"`
	PermissionKey string    `json:"permission"`
	OrgID         string    `json:"org_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RoleAssignment is a user→role grant at an org scope.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	OrgID     string    `json:"org_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleUpdate carries partial role changes; nil fields are left untouched.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions *[]string
}
