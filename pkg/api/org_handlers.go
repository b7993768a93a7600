package api

import (
	"net/http"

	"github.com/rosterhq/roster/pkg/audit"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/orgs"
)

// CreateOrganization creates an organization owned by the caller. The owner
// is inserted as an admin member in the same transaction.
func (s *Server) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	org := &orgs.Organization{
		OwnerID:        user.ID,
		Name:           req.Name,
		Domain:         req.Domain,
		AttachByDomain: req.AttachByDomain,
	}
	if err := s.orgs.CreateOrganization(org); err != nil {
		writeServiceError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.OrganizationsCreated.Inc()
	}
	s.recordAudit(r, org.ID, audit.ActionOrgCreated, org.ID, nil)
	s.logger.WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"slug":            org.Slug,
		"owner_id":        org.OwnerID,
	}).Info("organization created")
	httputil.WriteCreated(w, org)
}

// ListOrganizations lists the organizations the caller belongs to
func (s *Server) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	list, err := s.orgs.ListOrganizationsForUser(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// GetOrganization returns the resolved organization
func (s *Server) GetOrganization(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetOrg(r))
}

// UpdateOrganization applies a partial update to the resolved organization
func (s *Server) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)

	var req orgs.UpdateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.orgs.UpdateOrganization(org.ID, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	s.resolver.InvalidateOrg(org.Slug)
	s.recordAudit(r, org.ID, audit.ActionOrgUpdated, org.ID, nil)

	updated, err := s.orgs.GetOrganization(org.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// transferRequest names the member receiving ownership
type transferRequest struct {
	UserID string `json:"user_id"`
}

// TransferOwnership moves ownership to another member. The new owner's role
// is raised to admin and owner_id is updated in one transaction; a target
// without a membership fails the whole operation.
func (s *Server) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)

	var req transferRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}

	if err := s.orgs.TransferOwnership(org.ID, req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}

	s.resolver.InvalidateOrg(org.Slug)
	s.resolver.InvalidateMember(org.ID, req.UserID)
	if s.metrics != nil {
		s.metrics.OwnershipTransfers.Inc()
	}
	s.recordAudit(r, org.ID, audit.ActionOwnershipTransferred, req.UserID, map[string]string{
		"previous_owner_id": org.OwnerID,
	})
	s.logger.WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"new_owner_id":    req.UserID,
	}).Info("ownership transferred")

	updated, err := s.orgs.GetOrganization(org.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// ShutdownOrganization deletes the organization and everything scoped to it
func (s *Server) ShutdownOrganization(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)

	if err := s.projects.DeleteProjectsForOrganization(org.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := s.orgs.ShutdownOrganization(org.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	s.resolver.InvalidateOrg(org.Slug)
	if s.metrics != nil {
		s.metrics.OrganizationsShutdown.Inc()
	}
	s.recordAudit(r, org.ID, audit.ActionOrgShutdown, org.ID, nil)
	s.logger.WithField("organization_id", org.ID).Info("organization shut down")
	httputil.WriteNoContent(w)
}
