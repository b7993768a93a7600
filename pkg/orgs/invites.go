package orgs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const inviteColumns = `
	i.id, i.organization_id, i.author_id, i.email, i.role, i.created_at, i.expires_at,
	u.name, o.name
`

// CreateInvite creates a pending invite after checking both uniqueness
// invariants: no pending invite and no existing member for the email in the
// organization. The (organization_id, email) unique index backs the check
// against concurrent inserts.
func (s *PostgresService) CreateInvite(invite *Invite) error {
	if invite.ID == "" {
		invite.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = now
	}
	if invite.ExpiresAt.IsZero() {
		invite.ExpiresAt = now.Add(DefaultInviteTTL)
	}

	var existing string
	err := s.db.QueryRow(
		`SELECT id FROM org_invites WHERE organization_id = $1 AND email = $2`,
		invite.OrganizationID, invite.Email).Scan(&existing)
	if err == nil {
		return fmt.Errorf("invite for %q: %w", invite.Email, ErrDuplicateInvite)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check pending invites: %w", err)
	}

	if _, err := s.GetMemberByEmail(invite.OrganizationID, invite.Email); err == nil {
		return fmt.Errorf("invite for %q: %w", invite.Email, ErrDuplicateMember)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	query := `
		INSERT INTO org_invites (id, organization_id, author_id, email, role, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.Exec(query, invite.ID, invite.OrganizationID, invite.AuthorID,
		invite.Email, invite.Role, invite.CreatedAt, invite.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the check-then-insert race; same outcome as the check.
			return fmt.Errorf("invite for %q: %w", invite.Email, ErrDuplicateInvite)
		}
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// GetInvite retrieves an invite by ID with author and organization display
// names joined in
func (s *PostgresService) GetInvite(id string) (*Invite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM org_invites i
		JOIN users u ON u.id = i.author_id
		JOIN organizations o ON o.id = i.organization_id
		WHERE i.id = $1
	`
	invite, err := scanInvite(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invite %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return invite, nil
}

// ListInvites lists pending invites for an organization
func (s *PostgresService) ListInvites(orgID string) ([]*Invite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM org_invites i
		JOIN users u ON u.id = i.author_id
		JOIN organizations o ON o.id = i.organization_id
		WHERE i.organization_id = $1
		ORDER BY i.created_at DESC
	`
	return s.listInvites(query, orgID)
}

// ListPendingInvitesForUser lists invites addressed to the user's email
// across all organizations. The user must exist.
func (s *PostgresService) ListPendingInvitesForUser(userID string) ([]*Invite, error) {
	var email string
	err := s.db.QueryRow(`SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	query := `
		SELECT ` + inviteColumns + `
		FROM org_invites i
		JOIN users u ON u.id = i.author_id
		JOIN organizations o ON o.id = i.organization_id
		WHERE i.email = $1
		ORDER BY i.created_at DESC
	`
	return s.listInvites(query, email)
}

func (s *PostgresService) listInvites(query string, arg interface{}) ([]*Invite, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*Invite
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

// AcceptInvite consumes an invite: the accepting user becomes a member at
// the invited role and the invite row is deleted, atomically. The user's
// email must equal the invite's email byte for byte.
func (s *PostgresService) AcceptInvite(inviteID, userID string) error {
	return s.consumeInvite(inviteID, userID, true)
}

// RejectInvite deletes an invite under the same preconditions as accept,
// but never creates a membership.
func (s *PostgresService) RejectInvite(inviteID, userID string) error {
	return s.consumeInvite(inviteID, userID, false)
}

func (s *PostgresService) consumeInvite(inviteID, userID string, join bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var orgID, inviteEmail, role string
	var expiresAt time.Time
	err = tx.QueryRow(
		`SELECT organization_id, email, role, expires_at FROM org_invites WHERE id = $1`,
		inviteID).Scan(&orgID, &inviteEmail, &role, &expiresAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("invite %q: %w", inviteID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get invite: %w", err)
	}

	var userEmail string
	err = tx.QueryRow(`SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail)
	if err == sql.ErrNoRows {
		return fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve user: %w", err)
	}

	if userEmail != inviteEmail {
		return fmt.Errorf("invite %q: %w", inviteID, ErrEmailMismatch)
	}
	if time.Now().After(expiresAt) {
		return fmt.Errorf("invite %q: %w", inviteID, ErrInviteExpired)
	}

	if join {
		memberQuery := `
			INSERT INTO organization_members (id, organization_id, user_id, role, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (organization_id, user_id) DO NOTHING
		`
		if _, err := tx.Exec(memberQuery, uuid.NewString(), orgID, userID, role, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM org_invites WHERE id = $1`, inviteID); err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}

	return tx.Commit()
}

// RevokeInvite deletes an invite administratively. No email check, no
// membership side effect, and revoking an absent invite is a no-op.
func (s *PostgresService) RevokeInvite(inviteID string) error {
	if _, err := s.db.Exec(`DELETE FROM org_invites WHERE id = $1`, inviteID); err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}
	return nil
}

// CleanupExpiredInvites deletes invites past their expiry and returns how
// many were removed
func (s *PostgresService) CleanupExpiredInvites() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM org_invites WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invites: %w", err)
	}
	return result.RowsAffected()
}

func scanInvite(row rowScanner) (*Invite, error) {
	invite := &Invite{}
	err := row.Scan(&invite.ID, &invite.OrganizationID, &invite.AuthorID, &invite.Email,
		&invite.Role, &invite.CreatedAt, &invite.ExpiresAt,
		&invite.AuthorName, &invite.OrganizationName)
	if err != nil {
		return nil, err
	}
	return invite, nil
}
