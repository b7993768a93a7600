package api

import (
	"net/http"

	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
)

// ListAuditEvents returns the organization's audit trail, newest first
func (s *Server) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		httputil.WriteNotFoundError(w, "audit trail not configured")
		return
	}

	org := middleware.GetOrg(r)
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	events, err := s.audit.ListForOrganization(r.Context(), org.ID, limit)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
