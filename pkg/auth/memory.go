package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of Store used by the API
// handler tests and the database-less dev mode
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	sessions  map[string]*Session // keyed by token hash
	generator *TokenGenerator
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		sessions:  make(map[string]*Session),
		generator: NewTokenGenerator(),
	}
}

// CreateUser creates a user with a globally unique email
func (s *MemoryStore) CreateUser(user *User, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %q: %w", user.Email, ErrDuplicateEmail)
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	return nil
}

// GetUser retrieves a user by ID
func (s *MemoryStore) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	copy := *user
	return &copy, nil
}

// GetUserByEmail retrieves a user by exact email
func (s *MemoryStore) GetUserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			copy := *user
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
}

// UpdateUser applies a partial profile update
func (s *MemoryStore) UpdateUser(id string, req *UpdateUserRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Authenticate verifies an email/password pair
func (s *MemoryStore) Authenticate(email, password string) (*User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}
	return user, nil
}

// CreateSession issues a token for the user
func (s *MemoryStore) CreateSession(userID string, ttl time.Duration) (*Session, string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	token, tokenHash, tokenPrefix, err := s.generator.GenerateToken()
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	session := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	s.mu.Lock()
	s.sessions[tokenHash] = session
	s.mu.Unlock()
	return session, token, nil
}

// ResolveToken returns the user behind a valid, unexpired token
func (s *MemoryStore) ResolveToken(token string) (*User, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[s.generator.HashToken(token)]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("resolve token: %w", ErrInvalidToken)
	}
	user, ok := s.users[session.UserID]
	if !ok {
		return nil, fmt.Errorf("resolve token: %w", ErrInvalidToken)
	}
	copy := *user
	return &copy, nil
}

// RevokeSession deletes the session behind a token; unknown tokens are a
// no-op
func (s *MemoryStore) RevokeSession(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, s.generator.HashToken(token))
	return nil
}

// CleanupExpiredSessions deletes sessions past their expiry
func (s *MemoryStore) CleanupExpiredSessions() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var removed int64
	for hash, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed, nil
}
