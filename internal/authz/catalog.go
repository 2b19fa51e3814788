package authz

import (
	"fmt"
	"slices"
	"strings"
)

// Permission describes a capability known to the catalog.
type Permission struct {
	Key         string
	Description string
	// ScopeOrgIDs restricts the orgs the permission may be granted in.
	// Empty means unconstrained: grantable in any org or globally.
	ScopeOrgIDs []string
}

// Catalog is the set of permission definitions, keyed by name.
type Catalog struct {
	byKey map[string]Permission
}

// NewCatalog builds a catalog, rejecting duplicate or empty keys.
func NewCatalog(perms []Permission) (*Catalog, error) {
	byKey := make(map[string]Permission, len(perms))
	for _, p := range perms {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			return nil, fmt.Errorf("%w: permission key is required", ErrInvalidInput)
		}
		if _, ok := byKey[key]; ok {
			return nil, fmt.Errorf("%w: duplicate permission %s", ErrInvalidInput, key)
		}
		p.Key = key
		byKey[key] = p
	}
	return &Catalog{byKey: byKey}, nil
}

// Lookup returns the permission definition for key.
func (c *Catalog) Lookup(key string) (Permission, bool) {
	p, ok := c.byKey[key]
	return p, ok
}

// Keys returns the catalog's permission names in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.byKey))
	for key := range c.byKey {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// ValidateGrant checks that the catalog knows the permission and that orgID
// is admissible under its scope constraint.
func (c *Catalog) ValidateGrant(key, orgID string) error {
	p, ok := c.byKey[key]
	if !ok {
		return fmt.Errorf("%w: permission %s", ErrNotFound, key)
	}
	return ValidateGrantScope(p, orgID)
}

// ValidateGrantScope checks a single permission definition against a grant
// scope. A scope-constrained permission is only grantable inside its listed
// orgs, never at the global scope.
func ValidateGrantScope(p Permission, orgID string) error {
	if len(p.ScopeOrgIDs) == 0 {
		return nil
	}
	if orgID == GlobalScope {
		return fmt.Errorf("%w: permission %s cannot be granted at global scope", ErrInvalidInput, p.Key)
	}
	if !slices.Contains(p.ScopeOrgIDs, orgID) {
		return fmt.Errorf("%w: permission %s is not grantable in org %s", ErrInvalidInput, p.Key, orgID)
	}
	return nil
}
