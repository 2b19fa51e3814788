package authz

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GrantSource is the persistence collaborator the resolver reads from.
// Implementations return a snapshot of the stored assignments; no ordering
// between a concurrent mutation and an in-flight read is guaranteed.
type GrantSource interface {
	// DirectGrants returns the user's direct permission grants.
	DirectGrants(ctx context.Context, userID string) ([]Grant, error)
	// RoleAssignments returns the user's role assignments with each role's
	// permission list preloaded.
	RoleAssignments(ctx context.Context, userID string) ([]RoleAssignment, error)
}

// Resolver computes the effective permission set of a principal from direct
// grants and role-derived grants.
type Resolver struct {
	source GrantSource
	cache  *resolutionCache
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver) error

// WithCache enables a bounded resolution cache. Entries live until ttl
// expires or Invalidate is called for the user.
func WithCache(size int, ttl time.Duration) ResolverOption {
	return func(r *Resolver) error {
		cache, err := newResolutionCache(size, ttl)
		if err != nil {
			return err
		}
		r.cache = cache
		return nil
	}
}

// NewResolver constructs a Resolver over the given source.
func NewResolver(source GrantSource, opts ...ResolverOption) (*Resolver, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: grant source is required", ErrInvalidInput)
	}
	r := &Resolver{source: source}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve returns the deduplicated, sorted grant set for the user. Direct
// grants keep their own scope; role-derived grants take the scope of the
// role assignment. A user with no grants resolves to an empty set.
func (r *Resolver) Resolve(ctx context.Context, userID string) (GrantSet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if set, ok := r.cache.get(userID); ok {
		return set, nil
	}

	direct, err := r.source.DirectGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	assignments, err := r.source.RoleAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	grants := make([]Grant, 0, len(direct)+len(assignments))
	grants = append(grants, direct...)
	for i := range assignments {
		names, err := ExpandRole(&assignments[i].Role)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			grants = append(grants, Grant{Name: name, OrgID: assignments[i].OrgID})
		}
	}

	set := NewGrantSet(grants)
	r.cache.add(userID, set)
	return set, nil
}

// Invalidate drops the cached resolution for the user. Must be called after
// every grant or role mutation affecting the user so the next resolution
// observes the change.
func (r *Resolver) Invalidate(userID string) {
	r.cache.invalidate(userID)
}

// InvalidateAll drops every cached resolution. Used when a mutation can
// affect an unbounded set of users, e.g. editing a role's permission list.
func (r *Resolver) InvalidateAll() {
	r.cache.purge()
}
