package httpapi

import (
	"net/http"

	"github.com/WooodHead/yeep/internal/audit"
	"github.com/WooodHead/yeep/internal/iam"
)

type permissionCreateRequest struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	ScopeOrgIDs []string `json:"scope_org_ids"`
}

type permissionInfoRequest struct {
	Key string `json:"key"`
}

func (a *API) handlePermissionCreate(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	// The catalog is global, so defining permissions needs the global grant.
	if _, ok := a.can(w, r, iam.PermPermissionWrite, ""); !ok {
		return
	}
	var req permissionCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	perm, err := a.svc.CreatePermission(r.Context(), req.Key, req.Description, req.ScopeOrgIDs)
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.permission.create", map[string]any{
		"permission_id": perm.ID,
		"key":           perm.Key,
	})
	writeOK(w, map[string]any{"permission": perm})
}

func (a *API) handlePermissionList(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	scopes, ok := a.readScopes(w, r, iam.PermPermissionRead)
	if !ok {
		return
	}
	if scopes.Empty() {
		writeOK(w, map[string]any{"permissions": []iam.Permission{}})
		return
	}
	perms, err := a.svc.ListPermissions(r.Context())
	if err != nil {
		failDomain(w, err)
		return
	}
	if perms == nil {
		perms = []iam.Permission{}
	}
	writeOK(w, map[string]any{"permissions": perms})
}

func (a *API) handlePermissionInfo(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	scopes, ok := a.readScopes(w, r, iam.PermPermissionRead)
	if !ok {
		return
	}
	if scopes.Empty() {
		writeFail(w, http.StatusOK, codeNotFound, "permission not found")
		return
	}
	var req permissionInfoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	perm, err := a.svc.GetPermission(r.Context(), req.Key)
	if err != nil {
		failDomain(w, err)
		return
	}
	writeOK(w, map[string]any{"permission": perm})
}
