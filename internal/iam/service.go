package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/WooodHead/yeep/internal/authz"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 30 * time.Second
)

// Principal is a user together with their resolved permission set. The
// grant set is immutable and safe to share across checks within a request.
type Principal struct {
	User   User
	Grants authz.GrantSet
}

// Can reports whether the principal holds the permission at the given org
// scope or globally. Pass authz.GlobalScope to require a global grant only.
func (p Principal) Can(name, orgID string) bool {
	candidates := []string{orgID, authz.GlobalScope}
	if orgID == authz.GlobalScope {
		candidates = []string{authz.GlobalScope}
	}
	ok, err := authz.IsAuthorized(p.Grants, name, candidates)
	if err != nil {
		return false
	}
	return ok
}

// Service provides the IAM operations: org/user/role/permission management
// plus permission resolution and authorization checks.
type Service struct {
	store    Store
	resolver *authz.Resolver
}

// ServiceOption configures Service construction.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	cacheSize int
	cacheTTL  time.Duration
	noCache   bool
}

// WithResolutionCache overrides the resolution cache bounds.
func WithResolutionCache(size int, ttl time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// WithoutResolutionCache disables resolution caching; every check reads the
// store. Useful in tests and single-shot tools.
func WithoutResolutionCache() ServiceOption {
	return func(c *serviceConfig) { c.noCache = true }
}

// NewService constructs the IAM service over a store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("iam: store is required")
	}
	cfg := serviceConfig{cacheSize: defaultCacheSize, cacheTTL: defaultCacheTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	var resolverOpts []authz.ResolverOption
	if !cfg.noCache {
		resolverOpts = append(resolverOpts, authz.WithCache(cfg.cacheSize, cfg.cacheTTL))
	}
	resolver, err := authz.NewResolver(grantSource{store}, resolverOpts...)
	if err != nil {
		return nil, err
	}
	return &Service{store: store, resolver: resolver}, nil
}

// grantSource narrows Store to the resolver's read interface.
type grantSource struct{ store Store }

func (g grantSource) DirectGrants(ctx context.Context, userID string) ([]authz.Grant, error) {
	return g.store.DirectGrants(ctx, userID)
}

func (g grantSource) RoleAssignments(ctx context.Context, userID string) ([]authz.RoleAssignment, error) {
	return g.store.RoleAssignments(ctx, userID)
}

// EnsureBuiltins seeds the system permission catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// Resolve returns the user's effective grant set.
func (s *Service) Resolve(ctx context.Context, userID string) (authz.GrantSet, error) {
	return s.resolver.Resolve(ctx, userID)
}

// Principal loads the user and resolves their permissions.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return Principal{}, err
	}
	grants, err := s.resolver.Resolve(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{User: user, Grants: grants}, nil
}

// Require resolves the user and demands the permission at the org scope
// (with global fallback). A missing grant is ErrPermissionDenied; store
// failures propagate so callers fail closed.
func (s *Service) Require(ctx context.Context, userID, permission, orgID string) (Principal, error) {
	principal, err := s.Principal(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	ok, err := authz.IsAuthorized(principal.Grants, permission, []string{orgID, authz.GlobalScope})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !ok {
		return Principal{}, fmt.Errorf("%w: %s in scope %q", ErrPermissionDenied, permission, orgID)
	}
	return principal, nil
}

// AuthorizedScopes derives the org scopes the user may list under for the
// permission. An empty result is not an error: the caller answers with an
// empty list.
func (s *Service) AuthorizedScopes(ctx context.Context, userID, permission string) (authz.ScopeSet, error) {
	grants, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return authz.ScopeSet{}, err
	}
	return authz.AuthorizedScopes(grants, permission), nil
}

// --- organizations ---

func (s *Service) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	return s.store.CreateOrganization(ctx, name)
}

func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: org_id is required", ErrInvalidInput)
	}
	return s.store.GetOrganization(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context, scopes authz.ScopeSet) ([]Organization, error) {
	if scopes.Empty() {
		return nil, nil
	}
	return s.store.ListOrganizations(ctx, scopes)
}

func (s *Service) AddMember(ctx context.Context, orgID, userID string) (Membership, error) {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return Membership{}, fmt.Errorf("%w: org_id and user_id are required", ErrInvalidInput)
	}
	return s.store.AddMember(ctx, orgID, userID)
}

func (s *Service) RemoveMember(ctx context.Context, orgID, userID string) error {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return fmt.Errorf("%w: org_id and user_id are required", ErrInvalidInput)
	}
	return s.store.RemoveMember(ctx, orgID, userID)
}

func (s *Service) MembershipsForUser(ctx context.Context, userID string) ([]Membership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.MembershipsForUser(ctx, userID)
}

// --- users ---

func (s *Service) CreateUser(ctx context.Context, username, fullName, email string) (User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return s.store.CreateUser(ctx, username, strings.TrimSpace(fullName), email)
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, scopes authz.ScopeSet) ([]User, error) {
	if scopes.Empty() {
		return nil, nil
	}
	return s.store.ListUsers(ctx, scopes)
}

// --- permissions ---

func (s *Service) CreatePermission(ctx context.Context, key, description string, scopeOrgIDs []string) (Permission, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Permission{}, fmt.Errorf("%w: permission key is required", ErrInvalidInput)
	}
	if strings.HasPrefix(key, "yeep.") {
		return Permission{}, fmt.Errorf("%w: the yeep.* namespace is reserved for system permissions", ErrInvalidInput)
	}
	return s.store.CreatePermission(ctx, key, strings.TrimSpace(description), dedupeStrings(scopeOrgIDs))
}

func (s *Service) GetPermission(ctx context.Context, key string) (Permission, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Permission{}, fmt.Errorf("%w: permission key is required", ErrInvalidInput)
	}
	return s.store.GetPermissionByKey(ctx, key)
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// --- roles ---

func (s *Service) CreateRole(ctx context.Context, orgID, name, description string, permissionKeys []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	keys := dedupeStrings(permissionKeys)
	for _, key := range keys {
		if _, err := s.store.GetPermissionByKey(ctx, key); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Role{}, fmt.Errorf("%w: permission %s does not exist", ErrNotFound, key)
			}
			return Role{}, err
		}
	}
	return s.store.CreateRole(ctx, strings.TrimSpace(orgID), name, strings.TrimSpace(description), keys)
}

func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, id)
}

func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Permissions != nil {
		keys := dedupeStrings(*upd.Permissions)
		for _, key := range keys {
			if _, err := s.store.GetPermissionByKey(ctx, key); err != nil {
				if errors.Is(err, ErrNotFound) {
					return Role{}, fmt.Errorf("%w: permission %s does not exist", ErrNotFound, key)
				}
				return Role{}, err
			}
		}
		upd.Permissions = &keys
	}
	role, err := s.store.UpdateRole(ctx, id, upd)
	if err != nil {
		return Role{}, err
	}
	// role membership may have changed for every assignee; drop the whole
	// cache rather than track assignees here
	if upd.Permissions != nil {
		s.resolver.InvalidateAll()
	}
	return role, nil
}

func (s *Service) ListRoles(ctx context.Context, scopes authz.ScopeSet) ([]Role, error) {
	if scopes.Empty() {
		return nil, nil
	}
	return s.store.ListRoles(ctx, scopes)
}

// --- grants ---

// AssignPermission grants a permission directly to a user at an org scope
// (empty orgID = global). Scope constraints are enforced here, at grant
// time; the resolver never re-validates.
func (s *Service) AssignPermission(ctx context.Context, userID, permissionKey, orgID string) (PermissionAssignment, error) {
	userID = strings.TrimSpace(userID)
	permissionKey = strings.TrimSpace(permissionKey)
	orgID = strings.TrimSpace(orgID)
	if userID == "" || permissionKey == "" {
		return PermissionAssignment{}, fmt.Errorf("%w: user_id and permission are required", ErrInvalidInput)
	}
	perm, err := s.store.GetPermissionByKey(ctx, permissionKey)
	if err != nil {
		return PermissionAssignment{}, err
	}
	if err := authz.ValidateGrantScope(authz.Permission{Key: perm.Key, ScopeOrgIDs: perm.ScopeOrgIDs}, orgID); err != nil {
		return PermissionAssignment{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	assignment, err := s.store.AssignPermission(ctx, userID, perm.Key, orgID)
	if err != nil {
		return PermissionAssignment{}, err
	}
	s.resolver.Invalidate(userID)
	return assignment, nil
}

func (s *Service) RevokePermission(ctx context.Context, userID, permissionKey, orgID string) error {
	userID = strings.TrimSpace(userID)
	permissionKey = strings.TrimSpace(permissionKey)
	if userID == "" || permissionKey == "" {
		return fmt.Errorf("%w: user_id and permission are required", ErrInvalidInput)
	}
	if err := s.store.RevokePermission(ctx, userID, permissionKey, strings.TrimSpace(orgID)); err != nil {
		return err
	}
	s.resolver.Invalidate(userID)
	return nil
}

func (s *Service) AssignRole(ctx context.Context, userID, roleID, orgID string) (RoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return RoleAssignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	assignment, err := s.store.AssignRole(ctx, userID, roleID, strings.TrimSpace(orgID))
	if err != nil {
		return RoleAssignment{}, err
	}
	s.resolver.Invalidate(userID)
	return assignment, nil
}

func (s *Service) RevokeRole(ctx context.Context, userID, roleID, orgID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	if err := s.store.RevokeRole(ctx, userID, roleID, strings.TrimSpace(orgID)); err != nil {
		return err
	}
	s.resolver.Invalidate(userID)
	return nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
