package projects

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rosterhq/roster/pkg/orgs"
)

// PostgresService implements the Service interface on database/sql, using
// the same portable SQL subset as pkg/orgs so the sqlite-backed tests run
// the production queries.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateProject creates a project. The slug is derived from the name and is
// unique within the organization; collisions get a numeric suffix.
func (s *PostgresService) CreateProject(project *Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Slug == "" {
		slug, err := s.freeSlug(project.OrganizationID, orgs.Slugify(project.Name))
		if err != nil {
			return err
		}
		project.Slug = slug
	}

	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	query := `
		INSERT INTO projects (id, organization_id, owner_id, name, slug, description, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.Exec(query, project.ID, project.OrganizationID, project.OwnerID,
		project.Name, project.Slug, project.Description, project.AvatarURL,
		project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID within an organization
func (s *PostgresService) GetProject(orgID, projectID string) (*Project, error) {
	return s.getProject("id", orgID, projectID)
}

// GetProjectBySlug retrieves a project by slug within an organization
func (s *PostgresService) GetProjectBySlug(orgID, slug string) (*Project, error) {
	return s.getProject("slug", orgID, slug)
}

func (s *PostgresService) getProject(column, orgID, value string) (*Project, error) {
	query := fmt.Sprintf(`
		SELECT id, organization_id, owner_id, name, slug, description, avatar_url, created_at, updated_at
		FROM projects
		WHERE organization_id = $1 AND %s = $2
	`, column)
	project := &Project{}
	err := s.db.QueryRow(query, orgID, value).Scan(
		&project.ID, &project.OrganizationID, &project.OwnerID, &project.Name,
		&project.Slug, &project.Description, &project.AvatarURL,
		&project.CreatedAt, &project.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %q in organization %q: %w", value, orgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListProjects lists all projects of an organization
func (s *PostgresService) ListProjects(orgID string) ([]*Project, error) {
	query := `
		SELECT id, organization_id, owner_id, name, slug, description, avatar_url, created_at, updated_at
		FROM projects
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project := &Project{}
		err := rows.Scan(&project.ID, &project.OrganizationID, &project.OwnerID,
			&project.Name, &project.Slug, &project.Description, &project.AvatarURL,
			&project.CreatedAt, &project.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// UpdateProject applies a partial update. The slug never changes after
// creation.
func (s *PostgresService) UpdateProject(orgID, projectID string, req *UpdateProjectRequest) error {
	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if req.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *req.Name)
		argPos++
	}
	if req.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argPos))
		args = append(args, *req.Description)
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

	args = append(args, orgID, projectID)
	query := fmt.Sprintf("UPDATE projects SET %s WHERE organization_id = $%d AND id = $%d",
		strings.Join(setClauses, ", "), argPos, argPos+1)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("project %q in organization %q: %w", projectID, orgID, ErrNotFound)
	}
	return nil
}

// DeleteProject deletes a project. Deleting a project that is already gone
// is a no-op.
func (s *PostgresService) DeleteProject(orgID, projectID string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE organization_id = $1 AND id = $2`, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// DeleteProjectsForOrganization removes every project of an organization.
// The database cascade covers this on organization deletion; it exists so
// callers can cascade explicitly in non-SQL deployments too.
func (s *PostgresService) DeleteProjectsForOrganization(orgID string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE organization_id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete projects: %w", err)
	}
	return nil
}

// CountProjects returns the exact project count for one organization
func (s *PostgresService) CountProjects(orgID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM projects WHERE organization_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

// freeSlug returns base or the first numeric-suffixed variant not taken
// within the organization
func (s *PostgresService) freeSlug(orgID, base string) (string, error) {
	rows, err := s.db.Query(
		`SELECT slug FROM projects WHERE organization_id = $1 AND (slug = $2 OR slug LIKE $3)`,
		orgID, base, base+"-%")
	if err != nil {
		return "", fmt.Errorf("failed to check slug: %w", err)
	}
	defer rows.Close()

	taken := map[string]bool{}
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return "", fmt.Errorf("failed to scan slug: %w", err)
		}
		taken[slug] = true
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if !taken[base] {
		return base, nil
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate, nil
		}
	}
}
