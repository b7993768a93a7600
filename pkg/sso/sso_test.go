package sso

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/ability"
	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
)

// stubExchanger returns a fixed identity for any code
type stubExchanger struct {
	identity *Identity
	err      error
}

func (s *stubExchanger) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (s *stubExchanger) Exchange(ctx context.Context, code string) (*Identity, error) {
	return s.identity, s.err
}

func newFixture(t *testing.T, ex Exchanger) (*Handlers, auth.Store, *orgs.MemoryService) {
	t.Helper()
	authStore := auth.NewMemoryStore()
	orgService := orgs.NewMemoryService()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewHandlers(ex, authStore, orgService, logger, nil), authStore, orgService
}

func TestCompleteSignInCreatesUser(t *testing.T) {
	h, authStore, _ := newFixture(t, nil)

	identity := &Identity{Subject: "idp-1", Email: "alice@acme.com", Name: "Alice"}
	user, token, err := h.CompleteSignIn(context.Background(), identity)
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@acme.com", user.Email)
	assert.NotEmpty(t, token)

	// The issued token resolves to the new user.
	resolved, err := authStore.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	// IdP accounts carry no password.
	_, err = authStore.Authenticate("alice@acme.com", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestCompleteSignInExistingUser(t *testing.T) {
	h, authStore, _ := newFixture(t, nil)

	existing := &auth.User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, authStore.CreateUser(existing, "s3cret"))

	user, token, err := h.CompleteSignIn(context.Background(), &Identity{Email: "alice@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.NotEmpty(t, token)

	// The existing password still works.
	_, err = authStore.Authenticate("alice@acme.com", "s3cret")
	assert.NoError(t, err)
}

func TestCompleteSignInAutoJoinsByDomain(t *testing.T) {
	h, _, orgService := newFixture(t, nil)

	orgService.PutUser(orgs.UserRecord{ID: "owner-1", Name: "Owner", Email: "owner@acme.com"})
	org := &orgs.Organization{
		OwnerID:        "owner-1",
		Name:           "Acme",
		Domain:         "acme.com",
		AttachByDomain: true,
	}
	require.NoError(t, orgService.CreateOrganization(org))

	user, _, err := h.CompleteSignIn(context.Background(), &Identity{Email: "carol@acme.com", Name: "Carol"})
	require.NoError(t, err)

	member, err := orgService.GetMember(org.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, ability.RoleMember, member.Role)
}

func TestSignInRedirects(t *testing.T) {
	h, _, _ := newFixture(t, &stubExchanger{})

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/sso/signin", nil))

	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(t, location, "https://idp.example.com/authorize?state=")

	var state string
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookieName {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Contains(t, location, state)
}

func TestCallback(t *testing.T) {
	stub := &stubExchanger{identity: &Identity{Email: "alice@acme.com", Name: "Alice"}}
	h, _, _ := newFixture(t, stub)

	router := mux.NewRouter()
	h.RegisterRoutes(router)

	t.Run("success", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?state=abc&code=xyz", nil)
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "abc"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"token"`)
		assert.Contains(t, w.Body.String(), "alice@acme.com")
	})

	t.Run("state mismatch", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?state=evil&code=xyz", nil)
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "abc"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing state cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/sso/callback?state=abc&code=xyz", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing code", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?state=abc", nil)
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "abc"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("exchange failure", func(t *testing.T) {
		stub.err = errors.New("idp unreachable")
		defer func() { stub.err = nil }()

		r := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?state=abc&code=xyz", nil)
		r.AddCookie(&http.Cookie{Name: stateCookieName, Value: "abc"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestIdentityFromClaims(t *testing.T) {
	identity := identityFromClaims(map[string]interface{}{
		"sub":     "idp-42",
		"email":   "bob@globex.com",
		"name":    "Bob",
		"picture": "https://idp.example.com/bob.png",
	})
	assert.Equal(t, "idp-42", identity.Subject)
	assert.Equal(t, "bob@globex.com", identity.Email)
	assert.Equal(t, "Bob", identity.Name)
	assert.Equal(t, "https://idp.example.com/bob.png", identity.AvatarURL)

	// Name falls back to email.
	identity = identityFromClaims(map[string]interface{}{"email": "bob@globex.com"})
	assert.Equal(t, "bob@globex.com", identity.Name)
}
