package authz

import (
	"slices"
	"strings"
)

// GlobalScope is the org id of a grant that applies across all organizations.
const GlobalScope = ""

// Grant is the atomic unit of authorization: a permission name bound to an
// org scope. An empty OrgID denotes the global scope.
type Grant struct {
	Name  string `json:"name"`
	OrgID string `json:"org_id,omitempty"`
}

// compareGrants orders grants by name, then by org id. The global scope
// sorts before any concrete org id.
func compareGrants(a, b Grant) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.OrgID, b.OrgID)
}

// GrantSet is a resolved permission set: sorted by (name, org id) and free
// of duplicates. It is immutable once built and safe for concurrent reads.
type GrantSet []Grant

// NewGrantSet sorts and deduplicates grants into a GrantSet. The input slice
// is not modified.
func NewGrantSet(grants []Grant) GrantSet {
	if len(grants) == 0 {
		return GrantSet{}
	}
	set := slices.Clone(grants)
	slices.SortFunc(set, compareGrants)
	set = slices.Compact(set)
	return GrantSet(set)
}

// Contains reports whether the set holds the exact (name, orgID) pair.
// Lookup is a binary search over the sorted set.
func (s GrantSet) Contains(name, orgID string) bool {
	_, ok := slices.BinarySearchFunc(s, Grant{Name: name, OrgID: orgID}, compareGrants)
	return ok
}
