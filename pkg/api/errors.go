package api

import (
	"errors"
	"net/http"

	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/orgs"
	"github.com/rosterhq/roster/pkg/projects"
)

// writeServiceError maps service sentinel errors onto HTTP status codes.
// Anything unrecognized is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orgs.ErrNotFound),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, projects.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, orgs.ErrDuplicateInvite),
		errors.Is(err, orgs.ErrDuplicateMember),
		errors.Is(err, orgs.ErrDuplicateDomain),
		errors.Is(err, orgs.ErrNotAMember),
		errors.Is(err, auth.ErrDuplicateEmail):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, orgs.ErrEmailMismatch):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, orgs.ErrInviteExpired):
		httputil.WriteGone(w, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		httputil.WriteUnauthorized(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
