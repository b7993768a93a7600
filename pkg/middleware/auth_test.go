package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/auth"
)

func newAuthFixture(t *testing.T) (auth.Store, string) {
	store := auth.NewMemoryStore()
	user := &auth.User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, "s3cret"))

	_, token, err := store.CreateSession(user.ID, 0)
	require.NoError(t, err)
	return store, token
}

func TestAuthMiddleware(t *testing.T) {
	store, token := newAuthFixture(t)
	mw := NewAuthMiddleware(store, false)

	var gotUser *auth.User
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUser(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token resolves user", func(t *testing.T) {
		gotUser = nil
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotUser)
		assert.Equal(t, "alice@acme.com", gotUser.Email)
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer roster_bogus")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, store.RevokeSession(token))
		r := httptest.NewRequest(http.MethodGet, "/me", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthMiddlewareOptional(t *testing.T) {
	store, _ := newAuthFixture(t)
	mw := NewAuthMiddleware(store, true)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, GetUser(r))
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orgs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
