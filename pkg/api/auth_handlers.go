package api

import (
	"net/http"

	"github.com/rosterhq/roster/pkg/audit"
	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/orgs"
)

// AuthResponse is returned by sign-up and sign-in
type AuthResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`

	// JoinedOrganization is set when sign-up auto-joined the user to an
	// organization claiming their email domain
	JoinedOrganization *orgs.Organization `json:"joined_organization,omitempty"`
}

// SignUp creates an account, runs domain auto-join, and issues a session
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") ||
		!httputil.RequireNonEmpty(w, req.Email, "email") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	user := &auth.User{Name: req.Name, Email: req.Email}
	if err := s.auth.CreateUser(user, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	s.syncUserDirectory(user)
	s.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("user signed up")

	resp := &AuthResponse{User: user}
	joined, err := s.orgs.AutoJoinByDomain(user.ID, user.Email)
	if err != nil {
		s.logger.WithError(err).Warn("domain auto-join failed")
	} else if joined != nil {
		resp.JoinedOrganization = joined
		if s.metrics != nil {
			s.metrics.DomainAutoJoins.Inc()
		}
		s.recordAudit(r, joined.ID, audit.ActionMemberAutoJoined, user.ID, nil)
	}

	_, token, err := s.auth.CreateSession(user.ID, 0)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	resp.Token = token
	httputil.WriteCreated(w, resp)
}

// SignIn authenticates with email and password and issues a session
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.auth.Authenticate(req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	_, token, err := s.auth.CreateSession(user.ID, 0)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, &AuthResponse{Token: token, User: user})
}

// SignOut revokes the presented session token
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.RevokeSession(httputil.BearerToken(r)); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Me returns the authenticated user's profile
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetUser(r))
}

// UpdateMe applies a partial profile update
func (s *Server) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	var req auth.UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.auth.UpdateUser(user.ID, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := s.auth.GetUser(user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.syncUserDirectory(updated)
	httputil.WriteSuccess(w, updated)
}
