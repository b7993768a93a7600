package orgs

import (
	"database/sql"
	"fmt"

	"github.com/rosterhq/roster/pkg/ability"
)

const memberColumns = `
	m.id, m.organization_id, m.user_id, m.role, m.created_at,
	u.name, u.email, u.avatar_url
`

// ListMembers retrieves all members of an organization with user display
// fields joined in
func (s *PostgresService) ListMembers(orgID string) ([]*Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// GetMember retrieves a member by (organization, user)
func (s *PostgresService) GetMember(orgID, userID string) (*Member, error) {
	return s.getMember("m.user_id", orgID, userID)
}

// GetMemberByID retrieves a member by (organization, member id)
func (s *PostgresService) GetMemberByID(orgID, memberID string) (*Member, error) {
	return s.getMember("m.id", orgID, memberID)
}

// GetMemberByEmail retrieves a member by (organization, user email). Email
// comparison is exact; no case folding.
func (s *PostgresService) GetMemberByEmail(orgID, email string) (*Member, error) {
	return s.getMember("u.email", orgID, email)
}

func (s *PostgresService) getMember(column, orgID, value string) (*Member, error) {
	query := fmt.Sprintf(`
		SELECT `+memberColumns+`
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND %s = $2
	`, column)
	member, err := scanMember(s.db.QueryRow(query, orgID, value))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %q in organization %q: %w", value, orgID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// UpdateMemberRole changes a member's role, addressed by user ID
func (s *PostgresService) UpdateMemberRole(orgID, userID string, role ability.Role) error {
	return s.updateMemberRole("user_id", orgID, userID, role)
}

// UpdateMemberRoleByID changes a member's role, addressed by member ID
func (s *PostgresService) UpdateMemberRoleByID(orgID, memberID string, role ability.Role) error {
	return s.updateMemberRole("id", orgID, memberID, role)
}

func (s *PostgresService) updateMemberRole(column, orgID, value string, role ability.Role) error {
	query := fmt.Sprintf(`UPDATE organization_members SET role = $1 WHERE organization_id = $2 AND %s = $3`, column)
	result, err := s.db.Exec(query, role, orgID, value)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %q in organization %q: %w", value, orgID, ErrNotFound)
	}
	return nil
}

// RemoveMember removes a member from an organization. Removing a member
// that is already gone is a no-op, not an error.
func (s *PostgresService) RemoveMember(orgID, memberID string) error {
	_, err := s.db.Exec(
		`DELETE FROM organization_members WHERE organization_id = $1 AND id = $2`,
		orgID, memberID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// CountMembers returns the exact member count for one organization
func (s *PostgresService) CountMembers(orgID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM organization_members WHERE organization_id = $1`,
		orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func scanMember(row rowScanner) (*Member, error) {
	member := &Member{}
	var email, avatarURL sql.NullString
	err := row.Scan(&member.ID, &member.OrganizationID, &member.UserID, &member.Role,
		&member.CreatedAt, &member.Name, &email, &avatarURL)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		member.Email = email.String
	}
	if avatarURL.Valid {
		member.AvatarURL = avatarURL.String
	}
	return member, nil
}
