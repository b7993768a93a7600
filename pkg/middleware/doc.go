// Package middleware provides the HTTP middleware chain for the Roster API:
// request IDs, session authentication, organization and membership
// resolution, ability enforcement, and rate limiting.
//
// The usual chain, outermost first:
//
//	router.Use(middleware.RequestID(logger))
//	router.Use(rateLimit.Handler)
//	router.Use(authMW.Handler)
//	router.Use(orgResolver.Handler)
//
// Route-level ability gates then sit in front of individual handlers:
//
//	r.Handle("/orgs/{org}", middleware.RequireAbility(
//		ability.ActionUpdate, ability.SubjectOrganization, metrics,
//	)(updateHandler)).Methods(http.MethodPatch)
package middleware
