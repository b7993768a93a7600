package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements the Store interface on database/sql, using the
// same portable SQL subset as pkg/orgs so the sqlite-backed tests run the
// production queries.
type PostgresStore struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, generator: NewTokenGenerator()}
}

// CreateUser creates a user. An empty password leaves PasswordHash empty,
// which is how identity-provider accounts are stored.
func (s *PostgresStore) CreateUser(user *User, password string) error {
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

	query := `
		INSERT INTO users (id, name, email, password_hash, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(query, user.ID, user.Name, user.Email, user.PasswordHash,
		user.AvatarURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %q: %w", user.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *PostgresStore) GetUser(id string) (*User, error) {
	return s.getUser("id", id)
}

// GetUserByEmail retrieves a user by email. Comparison is exact; no case
// folding.
func (s *PostgresStore) GetUserByEmail(email string) (*User, error) {
	return s.getUser("email", email)
}

func (s *PostgresStore) getUser(column, value string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT id, name, email, password_hash, avatar_url, created_at, updated_at
		FROM users
		WHERE %s = $1
	`, column)
	user := &User{}
	err := s.db.QueryRow(query, value).Scan(&user.ID, &user.Name, &user.Email,
		&user.PasswordHash, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateUser applies a partial profile update
func (s *PostgresStore) UpdateUser(id string, req *UpdateUserRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if req.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *req.Name)
		argPos++
	}
	if req.AvatarURL != nil {
		setClauses = append(setClauses, fmt.Sprintf("avatar_url = $%d", argPos))
		args = append(args, *req.AvatarURL)
		argPos++
	}

	if len(setClauses) == 0 {
		return nil // Nothing to update
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return nil
}

// Authenticate verifies an email/password pair. Unknown emails and wrong
// passwords return the same error so callers cannot probe for accounts.
func (s *PostgresStore) Authenticate(email, password string) (*User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}
	return user, nil
}

// CreateSession issues a token for the user and stores its hash. The
// plaintext token is returned once and never persisted.
func (s *PostgresStore) CreateSession(userID string, ttl time.Duration) (*Session, string, error) {
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

	query := `
		INSERT INTO sessions (id, user_id, token_hash, token_prefix, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.Exec(query, session.ID, session.UserID, session.TokenHash,
		session.TokenPrefix, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	return session, token, nil
}

// ResolveToken returns the user behind a valid, unexpired token
func (s *PostgresStore) ResolveToken(token string) (*User, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	query := `
		SELECT u.id, u.name, u.email, u.password_hash, u.avatar_url, u.created_at, u.updated_at, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`
	user := &User{}
	var expiresAt time.Time
	err := s.db.QueryRow(query, s.generator.HashToken(token)).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.AvatarURL,
		&user.CreatedAt, &user.UpdatedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resolve token: %w", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, fmt.Errorf("resolve token: %w", ErrInvalidToken)
	}
	return user, nil
}

// RevokeSession deletes the session behind a token. Revoking an unknown
// token is a no-op.
func (s *PostgresStore) RevokeSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token_hash = $1`, s.generator.HashToken(token))
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions deletes sessions past their expiry and returns how
// many were removed
func (s *PostgresStore) CleanupExpiredSessions() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// isUniqueViolation detects unique constraint failures from either driver
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
