// Package httpapi exposes the IAM service over RPC-style HTTP endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
	"github.com/WooodHead/yeep/internal/obs"
)

// ReadyProbe reports readiness, e.g. by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the IAM service.
type API struct {
	mux        *http.ServeMux
	svc        *iam.Service
	tokens     *TokenVerifier
	readyProbe ReadyProbe
	version    string
}

func New(svc *iam.Service, tokens *TokenVerifier, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		tokens:     tokens,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/org.create", a.handleOrgCreate)
	a.mux.HandleFunc("/api/org.list", a.handleOrgList)
	a.mux.HandleFunc("/api/org.addMember", a.handleOrgAddMember)
	a.mux.HandleFunc("/api/org.removeMember", a.handleOrgRemoveMember)

	a.mux.HandleFunc("/api/user.create", a.handleUserCreate)
	a.mux.HandleFunc("/api/user.list", a.handleUserList)
	a.mux.HandleFunc("/api/user.info", a.handleUserInfo)
	a.mux.HandleFunc("/api/user.assignPermission", a.handleUserAssignPermission)
	a.mux.HandleFunc("/api/user.revokePermission", a.handleUserRevokePermission)
	a.mux.HandleFunc("/api/user.assignRole", a.handleUserAssignRole)
	a.mux.HandleFunc("/api/user.revokeRole", a.handleUserRevokeRole)

	a.mux.HandleFunc("/api/role.create", a.handleRoleCreate)
	a.mux.HandleFunc("/api/role.list", a.handleRoleList)
	a.mux.HandleFunc("/api/role.info", a.handleRoleInfo)
	a.mux.HandleFunc("/api/role.update", a.handleRoleUpdate)

	a.mux.HandleFunc("/api/permission.create", a.handlePermissionCreate)
	a.mux.HandleFunc("/api/permission.list", a.handlePermissionList)
	a.mux.HandleFunc("/api/permission.info", a.handlePermissionInfo)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with authentication and metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "yeep-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "yeep-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- authorization helpers ---

// principal returns the authenticated caller. The authn middleware fills it
// in; a miss means the route was registered as public by mistake.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (iam.Principal, bool) {
	principal, ok := iam.PrincipalFromContext(r.Context())
	if !ok {
		maskNotFound(w)
		return iam.Principal{}, false
	}
	return principal, true
}

// can checks the caller's grant at the given org scope (global fallback
// included) and answers the request itself on denial.
func (a *API) can(w http.ResponseWriter, r *http.Request, permission, orgID string) (iam.Principal, bool) {
	principal, ok := a.principal(w, r)
	if !ok {
		return iam.Principal{}, false
	}
	if !principal.Can(permission, orgID) {
		obs.AuthzDecision("deny")
		writeFail(w, http.StatusOK, codePermissionDenied, "insufficient permissions")
		return iam.Principal{}, false
	}
	obs.AuthzDecision("allow")
	return principal, true
}

// readScopes resolves the caller's listing scopes for a read permission.
// An empty scope set is not an error; list handlers answer with an empty
// result.
func (a *API) readScopes(w http.ResponseWriter, r *http.Request, permission string) (authz.ScopeSet, bool) {
	principal, ok := a.principal(w, r)
	if !ok {
		return authz.ScopeSet{}, false
	}
	return authz.AuthorizedScopes(principal.Grants, permission), true
}

func post(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return false
	}
	return true
}
