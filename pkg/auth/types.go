package auth

import (
	"errors"
	"time"
)

// Sentinel errors for the user and session stores
var (
	// ErrNotFound is returned when a referenced user or session does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when creating a user with an email that
	// is already registered
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials is returned on a failed password check
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for malformed, unknown or expired tokens
	ErrInvalidToken = errors.New("invalid token")
)

// DefaultSessionTTL is how long a session token stays valid
const DefaultSessionTTL = 30 * 24 * time.Hour

// User is an account. Email is globally unique. PasswordHash is empty for
// accounts created through an identity provider.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is a server-side record of an issued token. Only the SHA-256 hash
// of the token is stored; the plaintext is returned once at creation.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	TokenHash   string    `json:"-"`
	TokenPrefix string    `json:"token_prefix"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SignUpRequest is the payload for creating an account
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInRequest is the payload for password sign-in
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateUserRequest carries a partial profile update. Nil fields are left
// untouched; email never changes after creation.
type UpdateUserRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Store is the authoritative store for users and sessions
type Store interface {
	CreateUser(user *User, password string) error
	GetUser(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	UpdateUser(id string, req *UpdateUserRequest) error
	Authenticate(email, password string) (*User, error)

	CreateSession(userID string, ttl time.Duration) (*Session, string, error)
	ResolveToken(token string) (*User, error)
	RevokeSession(token string) error
	CleanupExpiredSessions() (int64, error)
}
