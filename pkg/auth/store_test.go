package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(context.Background(), db))
	return db
}

func TestCreateUser(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)

	user := &User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, "s3cret"))

	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	got, err := store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@acme.com", got.Email)

	got, err = store.GetUserByEmail("alice@acme.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Email lookup is exact.
	_, err = store.GetUserByEmail("Alice@Acme.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)

	require.NoError(t, store.CreateUser(&User{Name: "Alice", Email: "alice@acme.com"}, "s3cret"))

	err := store.CreateUser(&User{Name: "Imposter", Email: "alice@acme.com"}, "other")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateUserWithoutPassword(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)

	// Identity-provider accounts carry no password.
	user := &User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, ""))
	assert.Empty(t, user.PasswordHash)

	_, err := store.Authenticate("alice@acme.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateUser(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)

	user := &User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, "s3cret"))

	name := "Alice Liddell"
	avatar := "https://cdn.example.com/alice.png"
	require.NoError(t, store.UpdateUser(user.ID, &UpdateUserRequest{Name: &name, AvatarURL: &avatar}))

	got, err := store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.Name)
	assert.Equal(t, avatar, got.AvatarURL)

	err = store.UpdateUser("missing", &UpdateUserRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthenticate(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)

	user := &User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, "s3cret"))

	got, err := store.Authenticate("alice@acme.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = store.Authenticate("alice@acme.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email yields the same error as a wrong password.
	_, err = store.Authenticate("nobody@acme.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)

	user := &User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, "s3cret"))

	session, token, err := store.CreateSession(user.ID, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotContains(t, session.TokenHash, token)
	assert.WithinDuration(t, session.CreatedAt.Add(DefaultSessionTTL), session.ExpiresAt, time.Second)

	got, err := store.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	t.Run("malformed token", func(t *testing.T) {
		_, err := store.ResolveToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		unknown, _, _, err := NewTokenGenerator().GenerateToken()
		require.NoError(t, err)
		_, err = store.ResolveToken(unknown)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, store.RevokeSession(token))
		_, err := store.ResolveToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)

		// Revoking again is a no-op.
		require.NoError(t, store.RevokeSession(token))
	})
}

func TestSessionExpiry(t *testing.T) {
	db := setupTestDB(t)
	store := NewPostgresStore(db)

	user := &User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, "s3cret"))

	_, token, err := store.CreateSession(user.ID, time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	_, err = store.ResolveToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	removed, err := store.CleanupExpiredSessions()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	user := &User{Name: "Alice", Email: "alice@acme.com"}
	require.NoError(t, store.CreateUser(user, "s3cret"))

	err := store.CreateUser(&User{Name: "Imposter", Email: "alice@acme.com"}, "x")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := store.Authenticate("alice@acme.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, token, err := store.CreateSession(user.ID, 0)
	require.NoError(t, err)
	got, err = store.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, store.RevokeSession(token))
	_, err = store.ResolveToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	name := "Alice Liddell"
	require.NoError(t, store.UpdateUser(user.ID, &UpdateUserRequest{Name: &name}))
	got, err = store.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.Name)
}
