// Package auth provides user accounts and session tokens for Roster.
//
// # Overview
//
// Users sign up with email and password or arrive through an identity
// provider (pkg/sso), in which case no password hash is stored. Emails are
// globally unique and compared exactly, byte for byte.
//
// Sessions are opaque bearer tokens in the form roster_<base64url random>.
// Only the SHA-256 hash of a token is persisted; the plaintext is returned
// once at creation and cannot be recovered.
//
// # Usage Example
//
// Sign up and issue a token:
//
//	user := &auth.User{Name: "Alice", Email: "alice@acme.com"}
//	store.CreateUser(user, "s3cret")
//	_, token, _ := store.CreateSession(user.ID, auth.DefaultSessionTTL)
//
// Resolve a request token:
//
//	user, err := store.ResolveToken(bearer)
//	if errors.Is(err, auth.ErrInvalidToken) {
//		// 401
//	}
//
// # Related Packages
//
//   - pkg/middleware: extracts bearer tokens and loads the user
//   - pkg/orgs: domain auto-join runs right after user creation
//   - pkg/sso: OpenID Connect sign-in creating password-less accounts
package auth
