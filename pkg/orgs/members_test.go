package orgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/ability"
)

// addMember seeds a membership through the invite flow so the tests only
// exercise public surface.
func addMember(t *testing.T, service Service, orgID, authorID, userID, email string, role ability.Role) *Member {
	invite := &Invite{OrganizationID: orgID, AuthorID: authorID, Email: email, Role: role}
	require.NoError(t, service.CreateInvite(invite))
	require.NoError(t, service.AcceptInvite(invite.ID, userID))

	member, err := service.GetMember(orgID, userID)
	require.NoError(t, err)
	return member
}

func TestListMembers(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")
	seedUser(t, db, "user-2", "Bob", "bob@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))
	addMember(t, service, org.ID, "user-1", "user-2", "bob@acme.com", ability.RoleBilling)

	members, err := service.ListMembers(org.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	// Owner first (joined first), with user display fields filled in.
	assert.Equal(t, "user-1", members[0].UserID)
	assert.Equal(t, "Alice", members[0].Name)
	assert.Equal(t, "alice@acme.com", members[0].Email)
	assert.Equal(t, ability.RoleAdmin, members[0].Role)
	assert.Equal(t, ability.RoleBilling, members[1].Role)
}

func TestGetMemberByEmail(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))

	member, err := service.GetMemberByEmail(org.ID, "alice@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", member.UserID)

	// Comparison is exact, byte for byte.
	_, err = service.GetMemberByEmail(org.ID, "Alice@Acme.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMemberRole(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")
	seedUser(t, db, "user-2", "Bob", "bob@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))
	member := addMember(t, service, org.ID, "user-1", "user-2", "bob@acme.com", ability.RoleMember)

	t.Run("by user id", func(t *testing.T) {
		require.NoError(t, service.UpdateMemberRole(org.ID, "user-2", ability.RoleBilling))
		got, err := service.GetMember(org.ID, "user-2")
		require.NoError(t, err)
		assert.Equal(t, ability.RoleBilling, got.Role)
	})

	t.Run("by member id", func(t *testing.T) {
		require.NoError(t, service.UpdateMemberRoleByID(org.ID, member.ID, ability.RoleAdmin))
		got, err := service.GetMemberByID(org.ID, member.ID)
		require.NoError(t, err)
		assert.Equal(t, ability.RoleAdmin, got.Role)
	})

	t.Run("not found", func(t *testing.T) {
		err := service.UpdateMemberRole(org.ID, "user-9", ability.RoleMember)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("wrong organization", func(t *testing.T) {
		err := service.UpdateMemberRoleByID("other-org", member.ID, ability.RoleMember)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRemoveMember(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	seedUser(t, db, "user-1", "Alice", "alice@acme.com")
	seedUser(t, db, "user-2", "Bob", "bob@acme.com")

	org := &Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, service.CreateOrganization(org))
	member := addMember(t, service, org.ID, "user-1", "user-2", "bob@acme.com", ability.RoleMember)

	require.NoError(t, service.RemoveMember(org.ID, member.ID))
	_, err := service.GetMember(org.ID, "user-2")
	assert.ErrorIs(t, err, ErrNotFound)

	// Removing the same member again is a no-op, not an error.
	require.NoError(t, service.RemoveMember(org.ID, member.ID))

	count, err := service.CountMembers(org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
