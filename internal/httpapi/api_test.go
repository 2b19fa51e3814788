package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
)

var testSecret = []byte("test-secret")

// fakeStore implements iam.Store through interface embedding; tests
// override only the methods a handler reaches. An unstubbed call panics,
// which is the point.
type fakeStore struct {
	iam.Store

	user   iam.User
	grants []authz.Grant
	roles  []authz.RoleAssignment

	createOrganization func(ctx context.Context, name string) (iam.Organization, error)
	listOrganizations  func(ctx context.Context, scopes authz.ScopeSet) ([]iam.Organization, error)
	getPermissionByKey func(ctx context.Context, key string) (iam.Permission, error)
	assignPermission   func(ctx context.Context, userID, permissionKey, orgID string) (iam.PermissionAssignment, error)
	getRole            func(ctx context.Context, id string) (iam.Role, error)
	listUsers          func(ctx context.Context, scopes authz.ScopeSet) ([]iam.User, error)
	getUser            func(ctx context.Context, id string) (iam.User, error)
	directGrants       func(ctx context.Context, userID string) ([]authz.Grant, error)
	membershipsForUser func(ctx context.Context, userID string) ([]iam.Membership, error)
}

func (s *fakeStore) GetUser(ctx context.Context, id string) (iam.User, error) {
	if s.getUser != nil {
		return s.getUser(ctx, id)
	}
	if s.user.ID == "" || s.user.ID != id {
		return iam.User{}, iam.ErrNotFound
	}
	return s.user, nil
}

func (s *fakeStore) DirectGrants(ctx context.Context, userID string) ([]authz.Grant, error) {
	if s.directGrants != nil {
		return s.directGrants(ctx, userID)
	}
	return s.grants, nil
}

func (s *fakeStore) MembershipsForUser(ctx context.Context, userID string) ([]iam.Membership, error) {
	return s.membershipsForUser(ctx, userID)
}

func (s *fakeStore) RoleAssignments(ctx context.Context, userID string) ([]authz.RoleAssignment, error) {
	return s.roles, nil
}

func (s *fakeStore) CreateOrganization(ctx context.Context, name string) (iam.Organization, error) {
	return s.createOrganization(ctx, name)
}

func (s *fakeStore) ListOrganizations(ctx context.Context, scopes authz.ScopeSet) ([]iam.Organization, error) {
	return s.listOrganizations(ctx, scopes)
}

func (s *fakeStore) GetPermissionByKey(ctx context.Context, key string) (iam.Permission, error) {
	return s.getPermissionByKey(ctx, key)
}

func (s *fakeStore) AssignPermission(ctx context.Context, userID, permissionKey, orgID string) (iam.PermissionAssignment, error) {
	return s.assignPermission(ctx, userID, permissionKey, orgID)
}

func (s *fakeStore) GetRole(ctx context.Context, id string) (iam.Role, error) {
	return s.getRole(ctx, id)
}

func (s *fakeStore) ListUsers(ctx context.Context, scopes authz.ScopeSet) ([]iam.User, error) {
	return s.listUsers(ctx, scopes)
}

func newTestAPI(t *testing.T, store iam.Store) *API {
	t.Helper()
	svc, err := iam.NewService(store, iam.WithoutResolutionCache())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	verifier, err := NewTokenVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	return New(svc, verifier, ReadyProbe{}, "test")
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, a *API, token, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return payload
}

func errorCode(t *testing.T, payload map[string]any) string {
	t.Helper()
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", payload)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestUnauthenticatedRequestsAreMasked(t *testing.T) {
	a := newTestAPI(t, &fakeStore{})

	for _, token := range []string{"", "garbage"} {
		rr := doRequest(t, a, token, "/api/org.create", map[string]any{"name": "Acme"})
		if rr.Code != http.StatusNotFound {
			t.Fatalf("token %q: status = %d, want 404", token, rr.Code)
		}
		payload := decodeEnvelope(t, rr)
		if payload["ok"] != false || errorCode(t, payload) != codeNotFound {
			t.Fatalf("token %q: body = %v", token, payload)
		}
	}
}

func TestHealthzIsPublic(t *testing.T) {
	a := newTestAPI(t, &fakeStore{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rr.Code)
	}
}

func TestOrgCreateRequiresGlobalGrant(t *testing.T) {
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusActive},
		grants: []authz.Grant{{Name: iam.PermOrgWrite, OrgID: "org-1"}},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/org.create", map[string]any{"name": "Acme"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != false || errorCode(t, payload) != codePermissionDenied {
		t.Fatalf("body = %v", payload)
	}
}

func TestOrgCreateSuccess(t *testing.T) {
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusActive},
		grants: []authz.Grant{{Name: iam.PermOrgWrite, OrgID: authz.GlobalScope}},
		createOrganization: func(ctx context.Context, name string) (iam.Organization, error) {
			return iam.Organization{ID: "org-9", Name: name}, nil
		},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/org.create", map[string]any{"name": "Acme"})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
	org, ok := payload["org"].(map[string]any)
	if !ok || org["id"] != "org-9" || org["name"] != "Acme" {
		t.Fatalf("org = %v", payload["org"])
	}
}

func TestOrgListFiltersByAuthorizedScopes(t *testing.T) {
	var gotScopes authz.ScopeSet
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusActive},
		grants: []authz.Grant{{Name: iam.PermOrgRead, OrgID: "org-1"}},
		listOrganizations: func(ctx context.Context, scopes authz.ScopeSet) ([]iam.Organization, error) {
			gotScopes = scopes
			return []iam.Organization{{ID: "org-1", Name: "Acme"}}, nil
		},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/org.list", nil)
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
	if gotScopes.Wildcard || len(gotScopes.OrgIDs) != 1 || gotScopes.OrgIDs[0] != "org-1" {
		t.Fatalf("store scopes = %+v", gotScopes)
	}
}

func TestOrgListWithoutGrantsIsEmpty(t *testing.T) {
	store := &fakeStore{
		user: iam.User{ID: "u1", Status: iam.UserStatusActive},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/org.list", nil)
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
	orgs, ok := payload["orgs"].([]any)
	if !ok || len(orgs) != 0 {
		t.Fatalf("orgs = %v", payload["orgs"])
	}
}

func TestUserListWildcardScope(t *testing.T) {
	var gotScopes authz.ScopeSet
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusActive},
		grants: []authz.Grant{{Name: iam.PermUserRead, OrgID: authz.GlobalScope}},
		listUsers: func(ctx context.Context, scopes authz.ScopeSet) ([]iam.User, error) {
			gotScopes = scopes
			return []iam.User{{ID: "u2", Username: "bo"}}, nil
		},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/user.list", nil)
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
	if !gotScopes.Wildcard {
		t.Fatalf("global grant must list with a wildcard scope, got %+v", gotScopes)
	}
}

// twoUserStore backs the user.info tests: an org-scoped caller and a
// target user whose memberships the test controls.
func twoUserStore(callerGrants []authz.Grant, targetOrgs []string) *fakeStore {
	users := map[string]iam.User{
		"u1": {ID: "u1", Username: "caller", Status: iam.UserStatusActive},
		"u2": {ID: "u2", Username: "target", Email: "target@example.com", Status: iam.UserStatusActive},
	}
	grants := map[string][]authz.Grant{
		"u1": callerGrants,
		"u2": {{Name: "reports.read", OrgID: "org-2"}},
	}
	return &fakeStore{
		getUser: func(ctx context.Context, id string) (iam.User, error) {
			u, ok := users[id]
			if !ok {
				return iam.User{}, iam.ErrNotFound
			}
			return u, nil
		},
		directGrants: func(ctx context.Context, userID string) ([]authz.Grant, error) {
			return grants[userID], nil
		},
		membershipsForUser: func(ctx context.Context, userID string) ([]iam.Membership, error) {
			var out []iam.Membership
			for _, org := range targetOrgs {
				out = append(out, iam.Membership{UserID: userID, OrgID: org})
			}
			return out, nil
		},
	}
}

func TestUserInfoHiddenOutsideAuthorizedOrgs(t *testing.T) {
	// Caller reads in org-1 only; the target belongs to org-2. The record
	// and its grants must stay hidden, exactly as user.list would hide it.
	store := twoUserStore([]authz.Grant{{Name: iam.PermUserRead, OrgID: "org-1"}}, []string{"org-2"})
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/user.info", map[string]any{"user_id": "u2"})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != false || errorCode(t, payload) != codeNotFound {
		t.Fatalf("body = %v", payload)
	}
	if _, leaked := payload["user"]; leaked {
		t.Fatalf("user record leaked: %v", payload)
	}
	if _, leaked := payload["permissions"]; leaked {
		t.Fatalf("permission set leaked: %v", payload)
	}
}

func TestUserInfoVisibleThroughSharedOrg(t *testing.T) {
	store := twoUserStore([]authz.Grant{{Name: iam.PermUserRead, OrgID: "org-2"}}, []string{"org-2"})
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/user.info", map[string]any{"user_id": "u2"})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
	user, ok := payload["user"].(map[string]any)
	if !ok || user["id"] != "u2" {
		t.Fatalf("user = %v", payload["user"])
	}
	perms, ok := payload["permissions"].([]any)
	if !ok || len(perms) != 1 {
		t.Fatalf("permissions = %v", payload["permissions"])
	}
	grant, ok := perms[0].(map[string]any)
	if !ok || grant["name"] != "reports.read" || grant["org_id"] != "org-2" {
		t.Fatalf("grant = %v", perms[0])
	}
}

func TestUserInfoSelfReadNeedsNoGrant(t *testing.T) {
	// membershipsForUser stays nil: the self-read path must not consult it.
	store := &fakeStore{
		user: iam.User{ID: "u1", Username: "caller", Status: iam.UserStatusActive},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/user.info", map[string]any{"user_id": "u1"})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
	user, ok := payload["user"].(map[string]any)
	if !ok || user["id"] != "u1" {
		t.Fatalf("user = %v", payload["user"])
	}
}

func TestUserInfoWildcardSkipsMembershipLookup(t *testing.T) {
	store := twoUserStore([]authz.Grant{{Name: iam.PermUserRead, OrgID: authz.GlobalScope}}, nil)
	store.membershipsForUser = nil // a wildcard reader must not reach it
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/user.info", map[string]any{"user_id": "u2"})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
}

func TestAssignPermissionScopeViolation(t *testing.T) {
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusActive},
		grants: []authz.Grant{{Name: iam.PermUserWrite, OrgID: authz.GlobalScope}},
		getPermissionByKey: func(ctx context.Context, key string) (iam.Permission, error) {
			return iam.Permission{Key: key, ScopeOrgIDs: []string{"org-1"}}, nil
		},
	}
	a := newTestAPI(t, store)

	// Scope-constrained permission granted globally: rejected at grant time.
	rr := doRequest(t, a, signToken(t, "u1"), "/api/user.assignPermission", map[string]any{
		"user_id":    "u2",
		"permission": "billing.read",
		"org_id":     "",
	})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != false || errorCode(t, payload) != codeInvalidInput {
		t.Fatalf("body = %v", payload)
	}
}

func TestAssignPermissionSuccess(t *testing.T) {
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusActive},
		grants: []authz.Grant{{Name: iam.PermUserWrite, OrgID: "org-1"}},
		getPermissionByKey: func(ctx context.Context, key string) (iam.Permission, error) {
			return iam.Permission{Key: key}, nil
		},
		assignPermission: func(ctx context.Context, userID, permissionKey, orgID string) (iam.PermissionAssignment, error) {
			return iam.PermissionAssignment{UserID: userID, PermissionKey: permissionKey, OrgID: orgID}, nil
		},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/user.assignPermission", map[string]any{
		"user_id":    "u2",
		"permission": "reports.read",
		"org_id":     "org-1",
	})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != true {
		t.Fatalf("body = %v", payload)
	}
	assignment, ok := payload["assignment"].(map[string]any)
	if !ok || assignment["user_id"] != "u2" || assignment["org_id"] != "org-1" {
		t.Fatalf("assignment = %v", payload["assignment"])
	}
}

func TestRoleInfoMasksUnreadableRole(t *testing.T) {
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusActive},
		grants: []authz.Grant{{Name: iam.PermRoleRead, OrgID: "org-1"}},
		getRole: func(ctx context.Context, id string) (iam.Role, error) {
			return iam.Role{ID: id, OrgID: "org-2", Name: "hidden"}, nil
		},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/role.info", map[string]any{"role_id": "r1"})
	payload := decodeEnvelope(t, rr)
	if payload["ok"] != false || errorCode(t, payload) != codeNotFound {
		t.Fatalf("body = %v", payload)
	}
}

func TestDeactivatedUserIsMasked(t *testing.T) {
	store := &fakeStore{
		user:   iam.User{ID: "u1", Status: iam.UserStatusDeactivated},
		grants: []authz.Grant{{Name: iam.PermOrgRead, OrgID: authz.GlobalScope}},
	}
	a := newTestAPI(t, store)

	rr := doRequest(t, a, signToken(t, "u1"), "/api/org.list", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	store := &fakeStore{
		user: iam.User{ID: "u1", Status: iam.UserStatusActive},
	}
	a := newTestAPI(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/org.create", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("Allow = %q", rr.Header().Get("Allow"))
	}
}
