package iam

const (
	PermOrgRead         = "yeep.org.read"
	PermOrgWrite        = "yeep.org.write"
	PermUserRead        = "yeep.user.read"
	PermUserWrite       = "yeep.user.write"
	PermRoleRead        = "yeep.role.read"
	PermRoleWrite       = "yeep.role.write"
	PermPermissionRead  = "yeep.permission.read"
	PermPermissionWrite = "yeep.permission.write"
	PermAuditRead       = "yeep.audit.read"
)

// BuiltinPermissions is the system catalog seeded at startup. Builtin
// permissions carry no scope constraint: they are grantable in any org or
// globally.
var BuiltinPermissions = []Permission{
	{Key: PermOrgRead, Description: "Read organizations", IsSystem: true},
	{Key: PermOrgWrite, Description: "Create and manage organizations", IsSystem: true},
	{Key: PermUserRead, Description: "Read users", IsSystem: true},
	{Key: PermUserWrite, Description: "Create and manage users", IsSystem: true},
	{Key: PermRoleRead, Description: "Read roles", IsSystem: true},
	{Key: PermRoleWrite, Description: "Create and manage roles", IsSystem: true},
	{Key: PermPermissionRead, Description: "Read permissions", IsSystem: true},
	{Key: PermPermissionWrite, Description: "Create and manage permissions", IsSystem: true},
	{Key: PermAuditRead, Description: "Read the audit log", IsSystem: true},
}
