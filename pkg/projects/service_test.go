package projects

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/orgs"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			avatar_url TEXT NOT NULL DEFAULT ''
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, name, email) VALUES ('user-1', 'Alice', 'alice@acme.com')`)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, orgs.RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	return db
}

func createTestOrg(t *testing.T, db *sql.DB) *orgs.Organization {
	org := &orgs.Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, orgs.NewPostgresService(db).CreateOrganization(org))
	return org
}

func TestCreateProject(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	org := createTestOrg(t, db)

	project := &Project{OrganizationID: org.ID, OwnerID: "user-1", Name: "Launch Site"}
	require.NoError(t, service.CreateProject(project))

	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "launch-site", project.Slug)

	got, err := service.GetProject(org.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, "Launch Site", got.Name)
}

func TestCreateProjectSlugCollision(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	org := createTestOrg(t, db)

	first := &Project{OrganizationID: org.ID, OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(first))
	assert.Equal(t, "website", first.Slug)

	second := &Project{OrganizationID: org.ID, OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(second))
	assert.Equal(t, "website-2", second.Slug)

	// Slugs are scoped to the organization, not global.
	otherOrg := &orgs.Organization{Name: "Globex", OwnerID: "user-1"}
	require.NoError(t, orgs.NewPostgresService(db).CreateOrganization(otherOrg))
	third := &Project{OrganizationID: otherOrg.ID, OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(third))
	assert.Equal(t, "website", third.Slug)
}

func TestGetProjectBySlug(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	org := createTestOrg(t, db)

	project := &Project{OrganizationID: org.ID, OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(project))

	got, err := service.GetProjectBySlug(org.ID, "website")
	require.NoError(t, err)
	assert.Equal(t, project.ID, got.ID)

	_, err = service.GetProjectBySlug(org.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	org := createTestOrg(t, db)

	project := &Project{OrganizationID: org.ID, OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(project))

	name := "Marketing Website"
	desc := "Public site"
	require.NoError(t, service.UpdateProject(org.ID, project.ID, &UpdateProjectRequest{
		Name:        &name,
		Description: &desc,
	}))

	got, err := service.GetProject(org.ID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Marketing Website", got.Name)
	assert.Equal(t, "Public site", got.Description)
	assert.Equal(t, "website", got.Slug) // slug never changes on update

	err = service.UpdateProject(org.ID, "missing", &UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProject(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	org := createTestOrg(t, db)

	project := &Project{OrganizationID: org.ID, OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(project))

	require.NoError(t, service.DeleteProject(org.ID, project.ID))
	_, err := service.GetProject(org.ID, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, service.DeleteProject(org.ID, project.ID))
}

func TestCountProjects(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	org := createTestOrg(t, db)

	count, err := service.CountProjects(org.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	for _, name := range []string{"One", "Two", "Three"} {
		require.NoError(t, service.CreateProject(&Project{OrganizationID: org.ID, OwnerID: "user-1", Name: name}))
	}

	count, err = service.CountProjects(org.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestProjectsCascadeWithOrganization(t *testing.T) {
	db := setupTestDB(t)
	service := NewPostgresService(db)
	orgService := orgs.NewPostgresService(db)
	org := createTestOrg(t, db)

	project := &Project{OrganizationID: org.ID, OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(project))

	require.NoError(t, orgService.ShutdownOrganization(org.ID))

	count, err := service.CountProjects(org.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryService(t *testing.T) {
	service := NewMemoryService()

	first := &Project{OrganizationID: "org-1", OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(first))
	second := &Project{OrganizationID: "org-1", OwnerID: "user-1", Name: "Website"}
	require.NoError(t, service.CreateProject(second))
	assert.Equal(t, "website", first.Slug)
	assert.Equal(t, "website-2", second.Slug)

	got, err := service.GetProjectBySlug("org-1", "website-2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	desc := "docs"
	require.NoError(t, service.UpdateProject("org-1", first.ID, &UpdateProjectRequest{Description: &desc}))
	got, err = service.GetProject("org-1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "docs", got.Description)

	count, err := service.CountProjects("org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, service.DeleteProject("org-1", first.ID))
	require.NoError(t, service.DeleteProject("org-1", first.ID))

	require.NoError(t, service.DeleteProjectsForOrganization("org-1"))
	count, err = service.CountProjects("org-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
