package authz

import (
	"slices"
	"testing"
)

func TestNewGrantSetSortsAndDeduplicates(t *testing.T) {
	set := NewGrantSet([]Grant{
		{Name: "yeep.user.write", OrgID: "org-b"},
		{Name: "yeep.user.read", OrgID: "org-a"},
		{Name: "yeep.user.read", OrgID: ""},
		{Name: "yeep.user.read", OrgID: "org-a"},
		{Name: "yeep.org.read", OrgID: "org-a"},
	})

	want := GrantSet{
		{Name: "yeep.org.read", OrgID: "org-a"},
		{Name: "yeep.user.read", OrgID: ""},
		{Name: "yeep.user.read", OrgID: "org-a"},
		{Name: "yeep.user.write", OrgID: "org-b"},
	}
	if !slices.Equal(set, want) {
		t.Fatalf("unexpected grant set: %v", set)
	}
}

func TestNewGrantSetDoesNotMutateInput(t *testing.T) {
	input := []Grant{
		{Name: "b", OrgID: "1"},
		{Name: "a", OrgID: "1"},
	}
	_ = NewGrantSet(input)
	if input[0].Name != "b" {
		t.Fatalf("input slice was reordered: %v", input)
	}
}

func TestGrantSetContains(t *testing.T) {
	set := NewGrantSet([]Grant{
		{Name: "yeep.role.read", OrgID: "org-1"},
		{Name: "yeep.role.read", OrgID: ""},
		{Name: "yeep.role.write", OrgID: "org-2"},
	})

	cases := []struct {
		name  string
		orgID string
		want  bool
	}{
		{"yeep.role.read", "org-1", true},
		{"yeep.role.read", "", true},
		{"yeep.role.read", "org-2", false},
		{"yeep.role.write", "org-2", true},
		{"yeep.role.write", "", false},
		{"yeep.missing", "org-1", false},
	}
	for _, tc := range cases {
		if got := set.Contains(tc.name, tc.orgID); got != tc.want {
			t.Fatalf("Contains(%q, %q) = %v, want %v", tc.name, tc.orgID, got, tc.want)
		}
	}
}

func TestGlobalScopeSortsFirst(t *testing.T) {
	set := NewGrantSet([]Grant{
		{Name: "a", OrgID: "org-1"},
		{Name: "a", OrgID: ""},
	})
	if set[0].OrgID != GlobalScope {
		t.Fatalf("expected global grant first, got %v", set)
	}
}

func TestEmptyGrantSet(t *testing.T) {
	set := NewGrantSet(nil)
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
	if set.Contains("anything", "") {
		t.Fatalf("empty set should contain nothing")
	}
}
