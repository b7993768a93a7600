package api

import (
	"errors"
	"net/http"

	"github.com/rosterhq/roster/pkg/audit"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/orgs"
)

// ListMembers lists the organization roster with joined display fields
func (s *Server) ListMembers(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	members, err := s.orgs.ListMembers(org.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// UpdateMemberRole changes a member's role
func (s *Server) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	memberID, ok := httputil.ParsePathStringOrError(w, r, "member")
	if !ok {
		return
	}

	var req orgs.UpdateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "invalid role")
		return
	}

	member, err := s.orgs.GetMemberByID(org.ID, memberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.orgs.UpdateMemberRoleByID(org.ID, memberID, req.Role); err != nil {
		writeServiceError(w, err)
		return
	}
	s.resolver.InvalidateMember(org.ID, member.UserID)
	s.recordAudit(r, org.ID, audit.ActionMemberRoleChanged, member.UserID, map[string]string{
		"from": string(member.Role),
		"to":   string(req.Role),
	})

	updated, err := s.orgs.GetMemberByID(org.ID, memberID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// RemoveMember removes a member from the organization. Removing a member
// that is already gone is a no-op; removing the owner is rejected since the
// owner must stay a member until ownership is transferred.
func (s *Server) RemoveMember(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	memberID, ok := httputil.ParsePathStringOrError(w, r, "member")
	if !ok {
		return
	}

	member, err := s.orgs.GetMemberByID(org.ID, memberID)
	if errors.Is(err, orgs.ErrNotFound) {
		httputil.WriteNoContent(w)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if member.UserID == org.OwnerID {
		httputil.WriteConflict(w, "cannot remove the organization owner")
		return
	}

	if err := s.orgs.RemoveMember(org.ID, memberID); err != nil {
		writeServiceError(w, err)
		return
	}
	s.resolver.InvalidateMember(org.ID, member.UserID)
	s.recordAudit(r, org.ID, audit.ActionMemberRemoved, member.UserID, nil)
	httputil.WriteNoContent(w)
}
