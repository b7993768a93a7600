package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
)

const (
	stateCookieName = "roster_sso_state"
	stateTTL        = 10 * time.Minute
)

// Exchanger is the provider surface the handlers need. OIDCProvider
// satisfies it; tests substitute a stub.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// SignInResponse is returned after a completed SSO sign-in
type SignInResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Handlers implements the SSO sign-in endpoints
type Handlers struct {
	provider   Exchanger
	authStore  auth.Store
	orgService orgs.Service
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewHandlers creates the SSO handlers
func NewHandlers(provider Exchanger, authStore auth.Store, orgService orgs.Service, logger *observability.Logger, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		provider:   provider,
		authStore:  authStore,
		orgService: orgService,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterRoutes registers the SSO routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/sso/signin", h.SignIn).Methods(http.MethodGet)
	r.HandleFunc("/auth/sso/callback", h.Callback).Methods(http.MethodGet)
}

// SignIn starts the authorization code flow
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/sso",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the flow: verifies state, exchanges the code, signs the
// user in (creating the account on first sign-in) and issues a session.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		httputil.WriteBadRequest(w, "missing state cookie")
		return
	}
	if state := r.URL.Query().Get("state"); state == "" || state != cookie.Value {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.WithError(err).Warn("sso exchange failed")
		httputil.WriteUnauthorized(w, "sign-in failed")
		return
	}

	user, token, err := h.CompleteSignIn(r.Context(), identity)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	// Clear the state cookie.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth/sso",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputil.WriteSuccess(w, &SignInResponse{Token: token, User: user})
}

// CompleteSignIn resolves the identity to a local account, creating a
// password-less one on first sign-in, runs domain auto-join, and issues a
// session token.
func (h *Handlers) CompleteSignIn(ctx context.Context, identity *Identity) (*auth.User, string, error) {
	user, err := h.authStore.GetUserByEmail(identity.Email)
	if errors.Is(err, auth.ErrNotFound) {
		user = &auth.User{
			Name:      identity.Name,
			Email:     identity.Email,
			AvatarURL: identity.AvatarURL,
		}
		// No password: the account authenticates through the IdP only.
		if err := h.authStore.CreateUser(user, ""); err != nil {
			return nil, "", fmt.Errorf("failed to create user: %w", err)
		}
		h.logger.WithFields(map[string]interface{}{
			"user_id": user.ID,
			"email":   user.Email,
		}).Info("user created via sso")

		joined, err := h.orgService.AutoJoinByDomain(user.ID, user.Email)
		if err != nil {
			h.logger.WithError(err).Warn("domain auto-join failed")
		} else if joined != nil {
			if h.metrics != nil {
				h.metrics.DomainAutoJoins.Inc()
			}
			h.logger.WithFields(map[string]interface{}{
				"user_id":         user.ID,
				"organization_id": joined.ID,
			}).Info("user auto-joined organization by domain")
		}
	} else if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	_, token, err := h.authStore.CreateSession(user.ID, 0)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	return user, token, nil
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
