package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/WooodHead/yeep/internal/audit"
	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
)

type userCreateRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type userInfoRequest struct {
	UserID string `json:"user_id"`
}

type userPermissionRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
	OrgID      string `json:"org_id"`
}

type userRoleRequest struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
	OrgID  string `json:"org_id"`
}

func (a *API) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	if _, ok := a.can(w, r, iam.PermUserWrite, authz.GlobalScope); !ok {
		return
	}
	var req userCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	user, err := a.svc.CreateUser(r.Context(), req.Username, req.FullName, req.Email)
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.user.create", map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
	})
	writeOK(w, map[string]any{"user": user})
}

func (a *API) handleUserList(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	scopes, ok := a.readScopes(w, r, iam.PermUserRead)
	if !ok {
		return
	}
	users, err := a.svc.ListUsers(r.Context(), scopes)
	if err != nil {
		failDomain(w, err)
		return
	}
	if users == nil {
		users = []iam.User{}
	}
	writeOK(w, map[string]any{"users": users})
}

// handleUserInfo returns the user together with their effective grant set.
// Visibility follows the listing model: org-scoped readers only see users
// who share one of their authorized orgs. Everyone may read themselves.
// Users outside the caller's view are reported as not found.
func (a *API) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	caller, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req userInfoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	self := strings.TrimSpace(req.UserID) == caller.User.ID
	scopes := authz.AuthorizedScopes(caller.Grants, iam.PermUserRead)
	if !self && scopes.Empty() {
		writeFail(w, http.StatusOK, codeNotFound, "user not found")
		return
	}
	target, err := a.svc.Principal(r.Context(), req.UserID)
	if err != nil {
		failDomain(w, err)
		return
	}
	if !self && !scopes.Wildcard {
		visible, err := a.userInScopes(r.Context(), target.User.ID, scopes)
		if err != nil {
			failDomain(w, err)
			return
		}
		if !visible {
			writeFail(w, http.StatusOK, codeNotFound, "user not found")
			return
		}
	}
	grants := target.Grants
	if grants == nil {
		grants = authz.GrantSet{}
	}
	writeOK(w, map[string]any{
		"user":        target.User,
		"permissions": grants,
	})
}

// userInScopes reports whether the user belongs to at least one org in the
// caller's authorized scope set.
func (a *API) userInScopes(ctx context.Context, userID string, scopes authz.ScopeSet) (bool, error) {
	memberships, err := a.svc.MembershipsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, m := range memberships {
		if scopes.Contains(m.OrgID) {
			return true, nil
		}
	}
	return false, nil
}

func (a *API) handleUserAssignPermission(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	var req userPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if _, ok := a.can(w, r, iam.PermUserWrite, req.OrgID); !ok {
		return
	}
	assignment, err := a.svc.AssignPermission(r.Context(), req.UserID, req.Permission, req.OrgID)
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.user.assign_permission", map[string]any{
		"user_id":    assignment.UserID,
		"permission": assignment.PermissionKey,
		"org_id":     assignment.OrgID,
	})
	writeOK(w, map[string]any{"assignment": assignment})
}

func (a *API) handleUserRevokePermission(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	var req userPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if _, ok := a.can(w, r, iam.PermUserWrite, req.OrgID); !ok {
		return
	}
	if err := a.svc.RevokePermission(r.Context(), req.UserID, req.Permission, req.OrgID); err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.user.revoke_permission", map[string]any{
		"user_id":    req.UserID,
		"permission": req.Permission,
		"org_id":     req.OrgID,
	})
	writeOK(w, nil)
}

func (a *API) handleUserAssignRole(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	var req userRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if _, ok := a.can(w, r, iam.PermUserWrite, req.OrgID); !ok {
		return
	}
	assignment, err := a.svc.AssignRole(r.Context(), req.UserID, req.RoleID, req.OrgID)
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.user.assign_role", map[string]any{
		"user_id": assignment.UserID,
		"role_id": assignment.RoleID,
		"org_id":  assignment.OrgID,
	})
	writeOK(w, map[string]any{"assignment": assignment})
}

func (a *API) handleUserRevokeRole(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	var req userRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if _, ok := a.can(w, r, iam.PermUserWrite, req.OrgID); !ok {
		return
	}
	if err := a.svc.RevokeRole(r.Context(), req.UserID, req.RoleID, req.OrgID); err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.user.revoke_role", map[string]any{
		"user_id": req.UserID,
		"role_id": req.RoleID,
		"org_id":  req.OrgID,
	})
	writeOK(w, nil)
}
