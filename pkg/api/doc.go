// Package api exposes the HTTP surface: account and session routes, the
// organization-scoped routes behind membership resolution and ability gates,
// project and billing routes, and avatar upload/serving.
//
// Route layout:
//
//	POST   /auth/signup                    create account, auto-join, session
//	POST   /auth/signin                    password session
//	POST   /auth/signout                   revoke session
//	GET    /auth/me                        profile
//	PATCH  /auth/me                        partial profile update
//	PUT    /auth/me/avatar                 replace avatar
//	GET    /avatars/{kind}/{file}          serve stored avatar (public)
//	POST   /orgs                           create organization
//	GET    /orgs                           caller's organizations
//	GET    /invites                        caller's pending invites
//	POST   /invites/{invite}/accept        accept invite
//	POST   /invites/{invite}/reject        reject invite
//	       /orgs/{org}/...                 membership-scoped routes
//
// Everything under /orgs/{org} runs behind the organization resolver, which
// resolves the slug, requires a membership, and caches both lookups.
package api
