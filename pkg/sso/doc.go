// Package sso implements OpenID Connect sign-in. Accounts created through
// the identity provider carry no password and authenticate only via SSO;
// first sign-in runs domain auto-join against organizations that claim the
// user's email domain.
package sso
