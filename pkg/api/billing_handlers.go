package api

import (
	"net/http"

	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
)

// BillingQuote returns the current billing quote for the organization,
// computed from live seat and project counts
func (s *Server) BillingQuote(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r)
	quote, err := s.billing.QuoteForOrganization(org.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, quote)
}
