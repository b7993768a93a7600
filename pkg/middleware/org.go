package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rosterhq/roster/pkg/contextkeys"
	"github.com/rosterhq/roster/pkg/httputil"
	"github.com/rosterhq/roster/pkg/observability"
	"github.com/rosterhq/roster/pkg/orgs"
)

const (
	orgCacheSize    = 1024
	memberCacheSize = 4096
	cacheTTL        = 30 * time.Second
)

// OrgResolver resolves the {org} path variable into an organization and the
// acting user's membership, caching both. Cache entries expire after a short
// TTL; write paths call the Invalidate helpers to drop them eagerly.
type OrgResolver struct {
	service orgs.Service
	metrics *observability.Metrics

	orgCache    *expirable.LRU[string, *orgs.Organization]
	memberCache *expirable.LRU[string, *orgs.Member]
}

// NewOrgResolver creates a new organization resolver
func NewOrgResolver(service orgs.Service, metrics *observability.Metrics) *OrgResolver {
	return &OrgResolver{
		service:     service,
		metrics:     metrics,
		orgCache:    expirable.NewLRU[string, *orgs.Organization](orgCacheSize, nil, cacheTTL),
		memberCache: expirable.NewLRU[string, *orgs.Member](memberCacheSize, nil, cacheTTL),
	}
}

// Handler resolves the organization named by the {org} route variable and the
// authenticated user's membership in it. Non-members get 403; routes without
// an {org} variable pass through untouched.
func (res *OrgResolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug, ok := mux.Vars(r)["org"]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		org, err := res.resolveOrg(slug)
		if errors.Is(err, orgs.ErrNotFound) {
			httputil.WriteNotFoundError(w, "organization not found")
			return
		}
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}

		user := GetUser(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}

		member, err := res.resolveMember(org.ID, user.ID)
		if errors.Is(err, orgs.ErrNotFound) {
			httputil.WriteForbidden(w, "not a member of this organization")
			return
		}
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}

		ctx := contextkeys.WithOrg(r.Context(), org)
		ctx = contextkeys.WithMember(ctx, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (res *OrgResolver) resolveOrg(slug string) (*orgs.Organization, error) {
	if org, ok := res.orgCache.Get(slug); ok {
		res.countCache("org", true)
		return org, nil
	}
	res.countCache("org", false)

	org, err := res.service.GetOrganizationBySlug(slug)
	if err != nil {
		return nil, err
	}
	res.orgCache.Add(slug, org)
	return org, nil
}

func (res *OrgResolver) resolveMember(orgID, userID string) (*orgs.Member, error) {
	key := orgID + ":" + userID
	if member, ok := res.memberCache.Get(key); ok {
		res.countCache("membership", true)
		return member, nil
	}
	res.countCache("membership", false)

	member, err := res.service.GetMember(orgID, userID)
	if err != nil {
		return nil, err
	}
	res.memberCache.Add(key, member)
	return member, nil
}

func (res *OrgResolver) countCache(cache string, hit bool) {
	if res.metrics == nil {
		return
	}
	if hit {
		res.metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		res.metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// InvalidateOrg drops a cached organization after an update or shutdown
func (res *OrgResolver) InvalidateOrg(slug string) {
	res.orgCache.Remove(slug)
}

// InvalidateMember drops a cached membership after a role change or removal
func (res *OrgResolver) InvalidateMember(orgID, userID string) {
	res.memberCache.Remove(orgID + ":" + userID)
}

// GetOrg extracts the resolved organization from the request, or nil
func GetOrg(r *http.Request) *orgs.Organization {
	org, _ := r.Context().Value(contextkeys.OrgKey).(*orgs.Organization)
	return org
}

// GetMember extracts the acting user's membership from the request, or nil
func GetMember(r *http.Request) *orgs.Member {
	member, _ := r.Context().Value(contextkeys.MemberKey).(*orgs.Member)
	return member
}
