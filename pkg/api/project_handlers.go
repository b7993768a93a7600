package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rosterhq/roster/pkg/ability"
	"github.com/rosterhq/roster/pkg/audit"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/projects"
)

// ListProjects lists the organization's projects
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	list, err := s.projects.ListProjects(org.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateProject creates a project owned by the caller
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	user := middleware.GetUser(r)

	var req projects.CreateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	project := &projects.Project{
		OrganizationID: org.ID,
		OwnerID:        user.ID,
		Name:           req.Name,
		Description:    req.Description,
	}
	if err := s.projects.CreateProject(project); err != nil {
		writeServiceError(w, err)
		return
	}

	s.recordAudit(r, org.ID, audit.ActionProjectCreated, project.ID, nil)
	s.logger.WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"project_id":      project.ID,
	}).Info("project created")
	httputil.WriteCreated(w, project)
}

// GetProject returns a project by slug or id
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	ref, ok := httputil.ParsePathStringOrError(w, r, "project")
	if !ok {
		return
	}

	project, err := s.resolveProject(org.ID, ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// UpdateProject applies a partial update. The route gate only checks read
// access; write access depends on who owns the project, so it is re-checked
// here against the loaded instance.
func (s *Server) UpdateProject(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	ref, ok := httputil.ParsePathStringOrError(w, r, "project")
	if !ok {
		return
	}

	var req projects.UpdateProjectRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	project, err := s.resolveProject(org.ID, ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !s.canTouchProject(r, ability.ActionUpdate, project) {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	if err := s.projects.UpdateProject(org.ID, project.ID, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	s.recordAudit(r, org.ID, audit.ActionProjectUpdated, project.ID, nil)

	updated, err := s.projects.GetProject(org.ID, project.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// DeleteProject deletes a project. Deleting a project that is already gone
// is a no-op.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	ref, ok := httputil.ParsePathStringOrError(w, r, "project")
	if !ok {
		return
	}

	project, err := s.resolveProject(org.ID, ref)
	if errors.Is(err, projects.ErrNotFound) {
		httputil.WriteNoContent(w)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !s.canTouchProject(r, ability.ActionDelete, project) {
		httputil.WriteForbidden(w, "insufficient permissions")
		return
	}

	if err := s.projects.DeleteProject(org.ID, project.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	s.recordAudit(r, org.ID, audit.ActionProjectDeleted, project.ID, nil)
	httputil.WriteNoContent(w)
}

// resolveProject looks a project up by slug first, then by id
func (s *Server) resolveProject(orgID, ref string) (*projects.Project, error) {
	project, err := s.projects.GetProjectBySlug(orgID, ref)
	if errors.Is(err, projects.ErrNotFound) {
		return s.projects.GetProject(orgID, ref)
	}
	return project, err
}

// canTouchProject checks a write action against the loaded project instance,
// where member ownership predicates can apply
func (s *Server) canTouchProject(r *http.Request, action ability.Action, project *projects.Project) bool {
	member := middleware.GetMember(r)
	if member == nil {
		return false
	}
	user := ability.User{ID: member.UserID, Role: member.Role}
	subject := ability.ProjectSubject{ID: project.ID, OwnerID: project.OwnerID}
	allowed := ability.DefineAbilityFor(user).Can(action, subject)
	if s.metrics != nil {
		s.metrics.AbilityChecksTotal.
			WithLabelValues(string(action), string(ability.SubjectProject), strconv.FormatBool(allowed)).
			Inc()
	}
	return allowed
}
