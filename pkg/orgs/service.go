package orgs

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rosterhq/roster/pkg/ability"
)

// PostgresService implements the Service interface on database/sql. The SQL
// sticks to the portable subset ($n placeholders, RETURNING, ON CONFLICT,
// timestamps passed as arguments) so the same code runs against the sqlite
// databases the tests use.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateOrganization creates an organization and registers the owner as its
// first admin member in the same transaction. The slug is derived from the
// name; collisions get a numeric suffix.
func (s *PostgresService) CreateOrganization(org *Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.Slug == "" {
		slug, err := s.freeSlug(Slugify(org.Name))
		if err != nil {
			return err
		}
		org.Slug = slug
	}

	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if org.Domain != "" {
		taken, err := domainTaken(tx, org.Domain, "")
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("domain %q: %w", org.Domain, ErrDuplicateDomain)
		}
	}

	query := `
		INSERT INTO organizations (id, owner_id, name, slug, domain, attach_by_domain, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(query, org.ID, org.OwnerID, org.Name, org.Slug,
		nullableString(org.Domain), org.AttachByDomain, org.AvatarURL,
		org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("domain %q: %w", org.Domain, ErrDuplicateDomain)
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	// The owner is always a member; a dangling owner_id would make the
	// ability checks and billing counts disagree.
	memberQuery := `
		INSERT INTO organization_members (id, organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`
	if _, err := tx.Exec(memberQuery, uuid.NewString(), org.ID, org.OwnerID, ability.RoleAdmin, now); err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}

	return tx.Commit()
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(id string) (*Organization, error) {
	return s.getOrganization("id", id)
}

// GetOrganizationBySlug retrieves an organization by slug
func (s *PostgresService) GetOrganizationBySlug(slug string) (*Organization, error) {
	return s.getOrganization("slug", slug)
}

// GetOrganizationByDomain retrieves the organization claiming a domain
func (s *PostgresService) GetOrganizationByDomain(domain string) (*Organization, error) {
	return s.getOrganization("domain", domain)
}

func (s *PostgresService) getOrganization(column, value string) (*Organization, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, name, slug, domain, attach_by_domain, avatar_url, created_at, updated_at
		FROM organizations
		WHERE %s = $1
	`, column)
	org, err := scanOrganization(s.db.QueryRow(query, value))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization %q: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListOrganizationsForUser lists organizations the user is a member of
func (s *PostgresService) ListOrganizationsForUser(userID string) ([]*Organization, error) {
	query := `
		SELECT o.id, o.owner_id, o.name, o.slug, o.domain, o.attach_by_domain, o.avatar_url, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY o.created_at ASC
	`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// UpdateOrganization applies a partial update. Setting a domain re-checks
// global uniqueness, excluding the organization's own row.
func (s *PostgresService) UpdateOrganization(id string, req *UpdateOrgRequest) error {
	if req.Domain != nil && *req.Domain != "" {
		taken, err := domainTaken(s.db, *req.Domain, id)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("domain %q: %w", *req.Domain, ErrDuplicateDomain)
		}
	}

	setClauses := []string{}
	args := []interface{}{}
	argPos := 1

	if req.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argPos))
		args = append(args, *req.Name)
		argPos++
	}
	if req.Domain != nil {
		setClauses = append(setClauses, fmt.Sprintf("domain = $%d", argPos))
		args = append(args, nullableString(*req.Domain))
		argPos++
	}
	if req.AttachByDomain != nil {
		setClauses = append(setClauses, fmt.Sprintf("attach_by_domain = $%d", argPos))
		args = append(args, *req.AttachByDomain)
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
	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("domain: %w", ErrDuplicateDomain)
		}
		return fmt.Errorf("failed to update organization: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization %q: %w", id, ErrNotFound)
	}
	return nil
}

// TransferOwnership promotes the target member to admin and reassigns the
// organization's owner in one transaction. Either both writes land or
// neither does; a reader never observes a half-transferred organization.
func (s *PostgresService) TransferOwnership(orgID, newOwnerID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE organization_members SET role = $1 WHERE organization_id = $2 AND user_id = $3`,
		ability.RoleAdmin, orgID, newOwnerID)
	if err != nil {
		return fmt.Errorf("failed to promote new owner: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %q in organization %q: %w", newOwnerID, orgID, ErrNotAMember)
	}

	result, err = tx.Exec(
		`UPDATE organizations SET owner_id = $1, updated_at = $2 WHERE id = $3`,
		newOwnerID, time.Now().UTC(), orgID)
	if err != nil {
		return fmt.Errorf("failed to reassign owner: %w", err)
	}
	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("organization %q: %w", orgID, ErrNotFound)
	}

	return tx.Commit()
}

// ShutdownOrganization deletes an organization. Members, invites and
// projects go with it via foreign key cascades. Deleting an organization
// that no longer exists is a no-op.
func (s *PostgresService) ShutdownOrganization(orgID string) error {
	if _, err := s.db.Exec(`DELETE FROM organizations WHERE id = $1`, orgID); err != nil {
		return fmt.Errorf("failed to shutdown organization: %w", err)
	}
	return nil
}

// AutoJoinByDomain registers the user as a default-role member of the
// organization claiming the email's domain, if that organization opted in
// with attach_by_domain. Returns the joined organization, or nil when no
// organization matches.
func (s *PostgresService) AutoJoinByDomain(userID, email string) (*Organization, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return nil, nil
	}
	domain := email[at+1:]

	query := `
		SELECT id, owner_id, name, slug, domain, attach_by_domain, avatar_url, created_at, updated_at
		FROM organizations
		WHERE domain = $1 AND attach_by_domain = $2
	`
	org, err := scanOrganization(s.db.QueryRow(query, domain, true))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve auto-join organization: %w", err)
	}

	memberQuery := `
		INSERT INTO organization_members (id, organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`
	if _, err := s.db.Exec(memberQuery, uuid.NewString(), org.ID, userID, ability.RoleMember, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to auto-join organization: %w", err)
	}
	return org, nil
}

// freeSlug returns base or the first numeric-suffixed variant not yet taken
func (s *PostgresService) freeSlug(base string) (string, error) {
	rows, err := s.db.Query(
		`SELECT slug FROM organizations WHERE slug = $1 OR slug LIKE $2`,
		base, base+"-%")
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
	return nextSlug(base, taken), nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx
type queryRower interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// domainTaken reports whether another organization (excluding excludeID)
// already claims the domain
func domainTaken(q queryRower, domain, excludeID string) (bool, error) {
	var id string
	err := q.QueryRow(`SELECT id FROM organizations WHERE domain = $1 AND id <> $2`, domain, excludeID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check domain: %w", err)
	}
	return true, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(row rowScanner) (*Organization, error) {
	org := &Organization{}
	var domain sql.NullString
	err := row.Scan(&org.ID, &org.OwnerID, &org.Name, &org.Slug, &domain,
		&org.AttachByDomain, &org.AvatarURL, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if domain.Valid {
		org.Domain = domain.String
	}
	return org, nil
}

// nullableString stores empty strings as NULL so unique indexes ignore them
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueViolation detects unique constraint failures from the driver. The
// check-then-insert invariants treat these as the storage-level safety net
// for races between the application check and the insert. The sqlite driver
// used in tests reports the violation as plain text.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
