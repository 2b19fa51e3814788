package httpapi

import (
	"net/http"

	"github.com/WooodHead/yeep/internal/audit"
	"github.com/WooodHead/yeep/internal/authz"
	"github.com/WooodHead/yeep/internal/iam"
)

type orgCreateRequest struct {
	Name string `json:"name"`
}

type orgMemberRequest struct {
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id"`
}

func (a *API) handleOrgCreate(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	if _, ok := a.can(w, r, iam.PermOrgWrite, authz.GlobalScope); !ok {
		return
	}
	var req orgCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	org, err := a.svc.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.org.create", map[string]any{
		"org_id": org.ID,
		"name":   org.Name,
	})
	writeOK(w, map[string]any{"org": org})
}

func (a *API) handleOrgList(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	scopes, ok := a.readScopes(w, r, iam.PermOrgRead)
	if !ok {
		return
	}
	orgs, err := a.svc.ListOrganizations(r.Context(), scopes)
	if err != nil {
		failDomain(w, err)
		return
	}
	if orgs == nil {
		orgs = []iam.Organization{}
	}
	writeOK(w, map[string]any{"orgs": orgs})
}

func (a *API) handleOrgAddMember(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	var req orgMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if _, ok := a.can(w, r, iam.PermOrgWrite, req.OrgID); !ok {
		return
	}
	membership, err := a.svc.AddMember(r.Context(), req.OrgID, req.UserID)
	if err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.org.add_member", map[string]any{
		"org_id":  membership.OrgID,
		"user_id": membership.UserID,
	})
	writeOK(w, map[string]any{"membership": membership})
}

func (a *API) handleOrgRemoveMember(w http.ResponseWriter, r *http.Request) {
	if !post(w, r) {
		return
	}
	var req orgMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if _, ok := a.can(w, r, iam.PermOrgWrite, req.OrgID); !ok {
		return
	}
	if err := a.svc.RemoveMember(r.Context(), req.OrgID, req.UserID); err != nil {
		failDomain(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "iam.org.remove_member", map[string]any{
		"org_id":  req.OrgID,
		"user_id": req.UserID,
	})
	writeOK(w, nil)
}
