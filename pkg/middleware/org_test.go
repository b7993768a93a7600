package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/ability"
	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/contextkeys"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
)

// asUser fakes an upstream auth middleware for a fixed user
func asUser(user *auth.User, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(contextkeys.WithUser(r.Context(), user)))
	})
}

func orgFixture(t *testing.T) (*orgs.MemoryService, *orgs.Organization) {
	service := orgs.NewMemoryService()
	service.PutUser(orgs.UserRecord{ID: "user-1", Name: "Alice", Email: "alice@acme.com"})
	service.PutUser(orgs.UserRecord{ID: "user-2", Name: "Bob", Email: "bob@globex.com"})

	org := &orgs.Organization{OwnerID: "user-1", Name: "Acme"}
	require.NoError(t, service.CreateOrganization(org))
	return service, org
}

func TestOrgResolver(t *testing.T) {
	service, org := orgFixture(t)
	resolver := NewOrgResolver(service, nil)

	var gotOrg *orgs.Organization
	var gotMember *orgs.Member
	router := mux.NewRouter()
	router.Handle("/orgs/{org}", resolver.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = GetOrg(r)
		gotMember = GetMember(r)
		w.WriteHeader(http.StatusOK)
	})))

	alice := &auth.User{ID: "user-1", Email: "alice@acme.com"}
	bob := &auth.User{ID: "user-2", Email: "bob@globex.com"}

	t.Run("member resolves org and membership", func(t *testing.T) {
		w := httptest.NewRecorder()
		asUser(alice, router).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orgs/acme", nil))

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotOrg)
		assert.Equal(t, org.ID, gotOrg.ID)
		require.NotNil(t, gotMember)
		assert.Equal(t, ability.RoleAdmin, gotMember.Role)
	})

	t.Run("non-member gets 403", func(t *testing.T) {
		w := httptest.NewRecorder()
		asUser(bob, router).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orgs/acme", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown org gets 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		asUser(alice, router).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orgs/globex", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("anonymous gets 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orgs/acme", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOrgResolverCaches(t *testing.T) {
	service, _ := orgFixture(t)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	resolver := NewOrgResolver(service, metrics)

	router := mux.NewRouter()
	router.Handle("/orgs/{org}", resolver.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	handler := asUser(&auth.User{ID: "user-1"}, router)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orgs/acme", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("org")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("org")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("membership")))
}

func TestOrgResolverInvalidate(t *testing.T) {
	service, org := orgFixture(t)
	resolver := NewOrgResolver(service, nil)

	var gotRole ability.Role
	router := mux.NewRouter()
	router.Handle("/orgs/{org}", resolver.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = GetMember(r).Role
		w.WriteHeader(http.StatusOK)
	})))
	handler := asUser(&auth.User{ID: "user-1"}, router)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orgs/acme", nil))
	assert.Equal(t, ability.RoleAdmin, gotRole)

	require.NoError(t, service.UpdateMemberRole(org.ID, "user-1", ability.RoleBilling))

	// Still cached until invalidated.
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orgs/acme", nil))
	assert.Equal(t, ability.RoleAdmin, gotRole)

	resolver.InvalidateMember(org.ID, "user-1")
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orgs/acme", nil))
	assert.Equal(t, ability.RoleBilling, gotRole)
}
