package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/rosterhq/roster/pkg/audit"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/orgs"
)

// CreateInvite invites an email into the resolved organization
func (s *Server) CreateInvite(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	user := middleware.GetUser(r)

	var req orgs.CreateInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteValidationError(w, "invalid role")
		return
	}

	invite := &orgs.Invite{
		OrganizationID: org.ID,
		AuthorID:       user.ID,
		Email:          req.Email,
		Role:           req.Role,
	}
	if ttl := time.Duration(s.inviteTTL.Load()); ttl > 0 {
		invite.ExpiresAt = time.Now().UTC().Add(ttl)
	}
	if err := s.orgs.CreateInvite(invite); err != nil {
		writeServiceError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.InvitesCreated.Inc()
	}
	s.recordAudit(r, org.ID, audit.ActionInviteCreated, invite.ID, map[string]string{
		"email": invite.Email,
		"role":  string(invite.Role),
	})
	s.logger.WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"invite_id":       invite.ID,
	}).Info("invite created")
	httputil.WriteCreated(w, invite)
}

// ListInvites lists the organization's pending invites
func (s *Server) ListInvites(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	invites, err := s.orgs.ListInvites(org.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, invites)
}

// RevokeInvite withdraws a pending invite. Revoking an invite that is
// already gone is a no-op.
func (s *Server) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	inviteID, ok := httputil.ParsePathStringOrError(w, r, "invite")
	if !ok {
		return
	}

	invite, err := s.orgs.GetInvite(inviteID)
	if errors.Is(err, orgs.ErrNotFound) {
		httputil.WriteNoContent(w)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if invite.OrganizationID != org.ID {
		httputil.WriteNotFoundError(w, "invite not found")
		return
	}

	if err := s.orgs.RevokeInvite(inviteID); err != nil {
		writeServiceError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.InvitesRevoked.Inc()
	}
	s.recordAudit(r, org.ID, audit.ActionInviteRevoked, inviteID, map[string]string{"email": invite.Email})
	httputil.WriteNoContent(w)
}

// ListMyInvites lists pending invites addressed to the caller's email
func (s *Server) ListMyInvites(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	invites, err := s.orgs.ListPendingInvitesForUser(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, invites)
}

// AcceptInvite accepts an invite addressed to the caller, creating the
// membership and consuming the invite atomically
func (s *Server) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	inviteID, ok := httputil.ParsePathStringOrError(w, r, "invite")
	if !ok {
		return
	}

	// Loaded before accept consumes it, for the audit trail's org scope
	invite, inviteErr := s.orgs.GetInvite(inviteID)

	if err := s.orgs.AcceptInvite(inviteID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.InvitesAccepted.Inc()
	}
	if inviteErr == nil {
		s.recordAudit(r, invite.OrganizationID, audit.ActionInviteAccepted, inviteID, nil)
	}
	s.logger.WithFields(map[string]interface{}{
		"invite_id": inviteID,
		"user_id":   user.ID,
	}).Info("invite accepted")
	httputil.WriteNoContent(w)
}

// RejectInvite declines an invite addressed to the caller
func (s *Server) RejectInvite(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	inviteID, ok := httputil.ParsePathStringOrError(w, r, "invite")
	if !ok {
		return
	}

	invite, inviteErr := s.orgs.GetInvite(inviteID)

	if err := s.orgs.RejectInvite(inviteID, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.InvitesRejected.Inc()
	}
	if inviteErr == nil {
		s.recordAudit(r, invite.OrganizationID, audit.ActionInviteRejected, inviteID, nil)
	}
	httputil.WriteNoContent(w)
}
