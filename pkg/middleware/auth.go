package middleware

import (
	"net/http"

	"github.com/rosterhq/roster/pkg/auth"
	"github.com/rosterhq/roster/pkg/contextkeys"
	"github.com/rosterhq/roster/pkg/httputil"
)

// AuthMiddleware resolves session tokens into users
type AuthMiddleware struct {
	store    auth.Store
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(store auth.Store, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		store:    store,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		if token == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		user, err := m.store.ResolveToken(token)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUser extracts the authenticated user from the request, or nil
func GetUser(r *http.Request) *auth.User {
	user, _ := r.Context().Value(contextkeys.UserKey).(*auth.User)
	return user
}
