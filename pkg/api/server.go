package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/rosterhq/roster/pkg/ability"
	"github.com/rosterhq/roster/pkg/async"
	"github.com/rosterhq/roster/pkg/audit"
	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/billing"
	"github.com/rosterhq/roster/pkg/middleware"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
	"github.com/rosterhq/roster/pkg/projects"
	"github.com/rosterhq/roster/pkg/storage"
)

// userDirectory mirrors account changes into stores that keep their own
// user view. The SQL services share the users table and never need this;
// the in-memory org service implements it.
type userDirectory interface {
	PutUser(orgs.UserRecord)
}

// Server bundles the services behind the HTTP API
type Server struct {
	auth     auth.Store
	orgs     orgs.Service
	projects projects.Service
	billing  *billing.Service
	avatars  storage.AvatarStore
	resolver *middleware.OrgResolver
	logger   *observability.Logger
	metrics  *observability.Metrics
	userDir  userDirectory
	audit    audit.Recorder

	// inviteTTL overrides the store default when positive. Atomic because
	// config reloads update it while requests are in flight.
	inviteTTL atomic.Int64
}

// NewServer creates an API server over the given services
func NewServer(authStore auth.Store, orgService orgs.Service, projectService projects.Service, avatars storage.AvatarStore, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		auth:     authStore,
		orgs:     orgService,
		projects: projectService,
		billing:  billing.NewService(orgService, projectService),
		avatars:  avatars,
		resolver: middleware.NewOrgResolver(orgService, metrics),
		logger:   logger,
		metrics:  metrics,
	}
	if dir, ok := orgService.(userDirectory); ok {
		s.userDir = dir
	}
	return s
}

// Resolver exposes the organization resolver so callers can share its caches
func (s *Server) Resolver() *middleware.OrgResolver {
	return s.resolver
}

// SetInviteTTL overrides how long new invites stay acceptable. Zero or
// negative restores the store default. Safe to call concurrently.
func (s *Server) SetInviteTTL(ttl time.Duration) {
	s.inviteTTL.Store(int64(ttl))
}

// SetAuditRecorder attaches an audit trail. Without one, audited operations
// run unrecorded.
func (s *Server) SetAuditRecorder(recorder audit.Recorder) {
	s.audit = recorder
}

// recordAudit writes an audit event off the request path. Failures are
// logged, never surfaced to the client.
func (s *Server) recordAudit(r *http.Request, orgID string, action audit.Action, targetID string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	actorID := ""
	if user := middleware.GetUser(r); user != nil {
		actorID = user.ID
	}
	event := &audit.Event{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		TargetID:       targetID,
		Metadata:       metadata,
	}
	async.SafeGo(r.Context(), 5*time.Second, "audit record", s.logger, func(ctx context.Context) error {
		return s.audit.Record(ctx, event)
	})
}

// RegisterRoutes registers all API routes on the router
func (s *Server) RegisterRoutes(router *mux.Router) {
	// Public routes
	router.HandleFunc("/auth/signup", s.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/auth/signin", s.SignIn).Methods(http.MethodPost)
	router.HandleFunc("/avatars/{kind}/{file}", s.ServeAvatar).Methods(http.MethodGet)

	// Authenticated routes
	authed := router.NewRoute().Subrouter()
	authed.Use(middleware.NewAuthMiddleware(s.auth, false).Handler)

	authed.HandleFunc("/auth/signout", s.SignOut).Methods(http.MethodPost)
	authed.HandleFunc("/auth/me", s.Me).Methods(http.MethodGet)
	authed.HandleFunc("/auth/me", s.UpdateMe).Methods(http.MethodPatch)
	authed.HandleFunc("/auth/me/avatar", s.UploadMyAvatar).Methods(http.MethodPut)

	authed.HandleFunc("/orgs", s.CreateOrganization).Methods(http.MethodPost)
	authed.HandleFunc("/orgs", s.ListOrganizations).Methods(http.MethodGet)

	authed.HandleFunc("/invites", s.ListMyInvites).Methods(http.MethodGet)
	authed.HandleFunc("/invites/{invite}/accept", s.AcceptInvite).Methods(http.MethodPost)
	authed.HandleFunc("/invites/{invite}/reject", s.RejectInvite).Methods(http.MethodPost)

	// Organization-scoped routes: membership is resolved and required, then
	// individual routes add ability gates.
	org := authed.PathPrefix("/orgs/{org}").Subrouter()
	org.Use(s.resolver.Handler)

	org.HandleFunc("", s.GetOrganization).Methods(http.MethodGet)
	org.Handle("", s.guard(ability.ActionUpdate, ability.SubjectOrganization, s.UpdateOrganization)).Methods(http.MethodPatch)
	org.Handle("", s.guard(ability.ActionDelete, ability.SubjectOrganization, s.ShutdownOrganization)).Methods(http.MethodDelete)
	org.Handle("/transfer", s.guard(ability.ActionTransferOwnership, ability.SubjectOrganization, s.TransferOwnership)).Methods(http.MethodPost)
	org.Handle("/avatar", s.guard(ability.ActionUpdate, ability.SubjectOrganization, s.UploadOrgAvatar)).Methods(http.MethodPut)

	org.HandleFunc("/members", s.ListMembers).Methods(http.MethodGet)
	org.Handle("/members/{member}", s.guard(ability.ActionUpdate, ability.SubjectUser, s.UpdateMemberRole)).Methods(http.MethodPatch)
	org.Handle("/members/{member}", s.guard(ability.ActionDelete, ability.SubjectUser, s.RemoveMember)).Methods(http.MethodDelete)

	org.Handle("/invites", s.guard(ability.ActionCreate, ability.SubjectInvite, s.CreateInvite)).Methods(http.MethodPost)
	org.Handle("/invites", s.guard(ability.ActionGet, ability.SubjectInvite, s.ListInvites)).Methods(http.MethodGet)
	org.Handle("/invites/{invite}", s.guard(ability.ActionDelete, ability.SubjectInvite, s.RevokeInvite)).Methods(http.MethodDelete)

	org.Handle("/projects", s.guard(ability.ActionGet, ability.SubjectProject, s.ListProjects)).Methods(http.MethodGet)
	org.Handle("/projects", s.guard(ability.ActionCreate, ability.SubjectProject, s.CreateProject)).Methods(http.MethodPost)
	org.Handle("/projects/{project}", s.guard(ability.ActionGet, ability.SubjectProject, s.GetProject)).Methods(http.MethodGet)
	org.Handle("/projects/{project}", s.guard(ability.ActionGet, ability.SubjectProject, s.UpdateProject)).Methods(http.MethodPatch)
	org.Handle("/projects/{project}", s.guard(ability.ActionGet, ability.SubjectProject, s.DeleteProject)).Methods(http.MethodDelete)

	org.Handle("/billing", s.guard(ability.ActionGet, ability.SubjectBilling, s.BillingQuote)).Methods(http.MethodGet)
	org.Handle("/audit", s.guard(ability.ActionManage, ability.SubjectOrganization, s.ListAuditEvents)).Methods(http.MethodGet)
}

// guard wraps a handler with an ability gate. Project update and delete are
// gated here at read level only; the handlers re-check at instance level
// once the project's owner is known.
func (s *Server) guard(action ability.Action, kind ability.SubjectKind, h http.HandlerFunc) http.Handler {
	return middleware.RequireAbility(action, kind, s.metrics)(h)
}

// syncUserDirectory pushes the current account state into the org store's
// user view when one is attached
func (s *Server) syncUserDirectory(user *auth.User) {
	if s.userDir == nil {
		return
	}
	s.userDir.PutUser(orgs.UserRecord{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	})
}
