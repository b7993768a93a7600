package orgs

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/ability"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// The users table is owned by pkg/auth; tests create a minimal version.
	_, err = db.Exec(`
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			avatar_url TEXT NOT NULL DEFAULT ''
		)
	`)
	require.NoError(t, err)

	require.NoError(t, RunMigrations(context.Background(), db))
	return db
}

func seedUser(t *testing.T, db *sql.DB, id, name, email string) {
	_, err := db.Exec(`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`, id, name, email)
	require.NoError(t, err)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple name",
			input:    "Acme",
			expected: "acme",
		},
		{
			name:     "name with spaces",
			input:    "Acme Corp",
			expected: "acme-corp",
		},
		{
			name:     "name with special chars",
			input:    "Acme & Sons, Inc.",
			expected: "acme-sons-inc",
		},
		{
			name:     "leading and trailing junk",
			input:    "  --Acme--  ",
			expected: "acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestNextSlug(t *testing.T) {
	taken := map[string]bool{"acme": true, "acme-2": true}
	assert.Equal(t, "acme-3", nextSlug("acme", taken))
	assert.Equal(t, "globex", nextSlug("globex", taken))
}

func TestCreateOrganization(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")

	org := &Organization{Name: "Acme Corp", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))

	assert.NotEmpty(t, org.ID)
	assert.Equal(t, "acme-corp", org.Slug)
	assert.False(t, org.CreatedAt.IsZero())

	// The owner becomes the first admin member in the same transaction.
	member, err := service.GetMember(org.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ability.RoleAdmin, member.Role)

	count, err := service.CountMembers(org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateOrganizationSlugCollision(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")

	first := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(first))
	assert.Equal(t, "acme", first.Slug)

	second := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(second))
	assert.Equal(t, "acme-2", second.Slug)

	third := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(third))
	assert.Equal(t, "acme-3", third.Slug)
}

func TestCreateOrganizationDuplicateDomain(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")

	first := &Organization{Name: "Acme", OwnerID: "user-1", Domain: "acme.com"}
	require.NoError(t, service.CreateOrganization(first))

	second := &Organization{Name: "Acme Europe", OwnerID: "user-1", Domain: "acme.com"}
	err := service.CreateOrganization(second)
	assert.ErrorIs(t, err, ErrDuplicateDomain)

	// The failed create must not leave a row behind.
	_, err = service.GetOrganizationBySlug("acme-europe")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetOrganization(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1", Domain: "acme.com"}
	require.NoError(t, service.CreateOrganization(org))

	t.Run("by id", func(t *testing.T) {
		got, err := service.GetOrganization(org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Name)
		assert.Equal(t, "acme.com", got.Domain)
	})

	t.Run("by slug", func(t *testing.T) {
		got, err := service.GetOrganizationBySlug("acme")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)
	})

	t.Run("by domain", func(t *testing.T) {
		got, err := service.GetOrganizationByDomain("acme.com")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := service.GetOrganization("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListOrganizationsForUser(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")
	seedUser(t, db, "user-2", "Bob", "bob@globex.com")

	acme := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(acme))
	globex := &Organization{Name: "Globex", OwnerID: "user-2"}
	require.NoError(t, service.CreateOrganization(globex))

	got, err := service.ListOrganizationsForUser("user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].Name)
}

func TestUpdateOrganization(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))

	t.Run("partial update", func(t *testing.T) {
		name := "Acme Corp"
		attach := true
		domain := "acme.com"
		err := service.UpdateOrganization(org.ID, &UpdateOrgRequest{
			Name:           &name,
			Domain:         &domain,
			AttachByDomain: &attach,
		})
		require.NoError(t, err)

		got, err := service.GetOrganization(org.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", got.Name)
		assert.Equal(t, "acme.com", got.Domain)
		assert.True(t, got.AttachByDomain)
		assert.Equal(t, "acme", got.Slug) // slug never changes on update
	})

	t.Run("keeping own domain is not a conflict", func(t *testing.T) {
		domain := "acme.com"
		err := service.UpdateOrganization(org.ID, &UpdateOrgRequest{Domain: &domain})
		require.NoError(t, err)
	})

	t.Run("domain claimed elsewhere", func(t *testing.T) {
		other := &Organization{Name: "Globex", OwnerID: "user-1", Domain: "globex.com"}
		require.NoError(t, service.CreateOrganization(other))

		domain := "globex.com"
		err := service.UpdateOrganization(org.ID, &UpdateOrgRequest{Domain: &domain})
		assert.ErrorIs(t, err, ErrDuplicateDomain)
	})

	t.Run("clearing the domain", func(t *testing.T) {
		domain := ""
		err := service.UpdateOrganization(org.ID, &UpdateOrgRequest{Domain: &domain})
		require.NoError(t, err)

		got, err := service.GetOrganization(org.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Domain)
	})

	t.Run("not found", func(t *testing.T) {
		name := "Ghost"
		err := service.UpdateOrganization("missing", &UpdateOrgRequest{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no fields is a no-op", func(t *testing.T) {
		require.NoError(t, service.UpdateOrganization(org.ID, &UpdateOrgRequest{}))
	})
}

func TestTransferOwnership(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")
	seedUser(t, db, "user-2", "Bob", "bob@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))

	invite := &Invite{OrganizationID: org.ID, AuthorID: "user-1", Email: "bob@acme.com", Role: ability.RoleMember}
	require.NoError(t, service.CreateInvite(invite))
	require.NoError(t, service.AcceptInvite(invite.ID, "user-2"))

	require.NoError(t, service.TransferOwnership(org.ID, "user-2"))

	got, err := service.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.OwnerID)

	member, err := service.GetMember(org.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, ability.RoleAdmin, member.Role)
}

func TestTransferOwnershipNotAMember(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")
	seedUser(t, db, "user-2", "Bob", "bob@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))

	err := service.TransferOwnership(org.ID, "user-2")
	assert.ErrorIs(t, err, ErrNotAMember)

	// The failed transfer must leave the organization untouched.
	got, err := service.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
}

func TestShutdownOrganization(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))
	invite := &Invite{OrganizationID: org.ID, AuthorID: "user-1", Email: "new@acme.com", Role: ability.RoleMember}
	require.NoError(t, service.CreateInvite(invite))

	require.NoError(t, service.ShutdownOrganization(org.ID))

	_, err := service.GetOrganization(org.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Members and invites go with the organization.
	count, err := service.CountMembers(org.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	_, err = service.GetInvite(invite.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Shutting down twice is a no-op.
	require.NoError(t, service.ShutdownOrganization(org.ID))
}

func TestAutoJoinByDomain(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")
	seedUser(t, db, "user-2", "Bob", "bob@acme.com")
	seedUser(t, db, "user-3", "Carol", "carol@globex.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1", Domain: "acme.com", AttachByDomain: true}
	require.NoError(t, service.CreateOrganization(org))

	t.Run("matching domain joins as member", func(t *testing.T) {
		joined, err := service.AutoJoinByDomain("user-2", "bob@acme.com")
		require.NoError(t, err)
		require.NotNil(t, joined)
		assert.Equal(t, org.ID, joined.ID)

		member, err := service.GetMember(org.ID, "user-2")
		require.NoError(t, err)
		assert.Equal(t, ability.RoleMember, member.Role)
	})

	t.Run("repeat join keeps the existing membership", func(t *testing.T) {
		require.NoError(t, service.UpdateMemberRole(org.ID, "user-2", ability.RoleBilling))

		joined, err := service.AutoJoinByDomain("user-2", "bob@acme.com")
		require.NoError(t, err)
		require.NotNil(t, joined)

		member, err := service.GetMember(org.ID, "user-2")
		require.NoError(t, err)
		assert.Equal(t, ability.RoleBilling, member.Role)
	})

	t.Run("no matching domain", func(t *testing.T) {
		joined, err := service.AutoJoinByDomain("user-3", "carol@globex.com")
		require.NoError(t, err)
		assert.Nil(t, joined)
	})

	t.Run("attach disabled", func(t *testing.T) {
		attach := false
		require.NoError(t, service.UpdateOrganization(org.ID, &UpdateOrgRequest{AttachByDomain: &attach}))

		joined, err := service.AutoJoinByDomain("user-3", "carol@acme.com")
		require.NoError(t, err)
		assert.Nil(t, joined)
	})

	t.Run("malformed email", func(t *testing.T) {
		joined, err := service.AutoJoinByDomain("user-3", "not-an-email")
		require.NoError(t, err)
		assert.Nil(t, joined)
	})
}

func TestTransferOwnershipWriteOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	service := NewPostgresService(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE organization_members SET role").
		WithArgs(ability.RoleAdmin, "org-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE organizations SET owner_id").
		WithArgs("user-2", sqlmock.AnyArg(), "org-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, service.TransferOwnership("org-1", "user-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferOwnershipRollsBackOnMissingMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	service := NewPostgresService(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE organization_members SET role").
		WithArgs(ability.RoleAdmin, "org-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = service.TransferOwnership("org-1", "user-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAMember))
	assert.NoError(t, mock.ExpectationsWereMet())
}
