package httpapi

import (
	"errors"
	"net/http"

	"github.com/WooodHead/yeep/internal/audit"
	"github.com/WooodHead/yeep/internal/iam"
)

type roleCreateRequest struct {
	OrgID       string   `json:"org_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type roleInfoRequest struct {
	RoleID string `json:"role_id"`
}

type roleUpdateRequest struct {
	RoleID      string    `json:"role_id"`
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
}

func (a *API) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	var req roleCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	// Creating a global role definition requires the global grant.
	if _, ok := a.can(w, r, iam.PermRoleWrite, req.OrgID); !ok {
		return
	}
	role, err := a.svc.CreateRole(r.Context(), req.OrgID, req.Name, req.Description, req.Permissions)
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.role.create", map[string]any{
		"role_id": role.ID,
		"org_id":  role.OrgID,
		"name":    role.Name,
	})
	writeOK(w, map[string]any{"role": role})
}

func (a *API) handleRoleList(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	scopes, ok := a.readScopes(w, r, iam.PermRoleRead)
	if !ok {
		return
	}
	roles, err := a.svc.ListRoles(r.Context(), scopes)
	if err != nil {
		failDomain(w, err)
		return
	}
	if roles == nil {
		roles = []iam.Role{}
	}
	writeOK(w, map[string]any{"roles": roles})
}

func (a *API) handleRoleInfo(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req roleInfoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	role, err := a.svc.GetRole(r.Context(), req.RoleID)
	if err != nil {
		failDomain(w, err)
		return
	}
	// Callers without read access in the role's org are told it does not
	// exist rather than that it is forbidden.
	if !principal.Can(iam.PermRoleRead, role.OrgID) {
		writeFail(w, http.StatusOK, codeNotFound, "role not found")
		return
	}
	writeOK(w, map[string]any{"role": role})
}

func (a *API) handleRoleUpdate(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req roleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	role, err := a.svc.GetRole(r.Context(), req.RoleID)
	if err != nil {
		if errors.Is(err, iam.ErrNotFound) {
			writeFail(w, http.StatusOK, codeNotFound, "role not found")
			return
		}
		failDomain(w, err)
		return
	}
	if !principal.Can(iam.PermRoleWrite, role.OrgID) {
		writeFail(w, http.StatusOK, codePermissionDenied, "insufficient permissions")
		return
	}
	if role.IsSystem {
		writeFail(w, http.StatusOK, codeInvalidInput, "system roles cannot be modified")
		return
	}
	updated, err := a.svc.UpdateRole(r.Context(), req.RoleID, iam.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.role.update", map[string]any{
		"role_id": updated.ID,
		"org_id":  updated.OrgID,
	})
	writeOK(w, map[string]any{"role": updated})
}
