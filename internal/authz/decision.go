package authz

import (
	"fmt"
	"strings"
)

// IsAuthorized reports whether grants contain the required permission at any
// of the candidate scopes, checked in the order given. Callers typically
// pass []string{orgID, GlobalScope} so a global grant satisfies an
// org-scoped check. The function is pure: it never touches storage.
func IsAuthorized(grants GrantSet, name string, candidates []string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, fmt.Errorf("%w: permission name is required", ErrInvalidInput)
	}
	if len(candidates) == 0 {
		return false, fmt.Errorf("%w: at least one candidate scope is required", ErrInvalidInput)
	}
	for _, scope := range candidates {
		if grants.Contains(name, scope) {
			return true, nil
		}
	}
	return false, nil
}

// ScopeSet is the result of scope authorization for list operations.
// Wildcard marks a global grant: the caller may query across all orgs and
// must not narrow the query to OrgIDs.
type ScopeSet struct {
	Wildcard bool
	OrgIDs   []string
}

// Empty reports whether the set authorizes no scope at all.
func (s ScopeSet) Empty() bool {
	return !s.Wildcard && len(s.OrgIDs) == 0
}

// Contains reports whether orgID falls inside the authorized set.
func (s ScopeSet) Contains(orgID string) bool {
	if s.Wildcard {
		return true
	}
	for _, id := range s.OrgIDs {
		if id == orgID {
			return true
		}
	}
	return false
}

// AuthorizedScopes derives the org scopes at which grants hold the named
// permission. A grant at the global scope turns the result into a wildcard
// rather than one more discrete scope. An empty result means the principal
// may see nothing; callers should answer with an empty list, not an error.
func AuthorizedScopes(grants GrantSet, name string) ScopeSet {
	var set ScopeSet
	for _, g := range grants {
		if g.Name != name {
			continue
		}
		if g.OrgID == GlobalScope {
			set.Wildcard = true
			continue
		}
		// grants are sorted and unique, so org ids arrive deduplicated
		set.OrgIDs = append(set.OrgIDs, g.OrgID)
	}
	return set
}
