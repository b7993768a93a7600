package orgs

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all organization schema migrations. The users table
// is owned by pkg/auth and must be migrated first.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL REFERENCES users(id),
					name TEXT NOT NULL,
					slug TEXT NOT NULL UNIQUE,
					domain TEXT UNIQUE,
					attach_by_domain BOOLEAN NOT NULL DEFAULT FALSE,
					avatar_url TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_slug ON organizations(slug);
				CREATE INDEX IF NOT EXISTS idx_organizations_domain ON organizations(domain);
			`,
		},
		{
			Version:     2,
			Description: "Create organization_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organization_members (
					id TEXT PRIMARY KEY,
					organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL,
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_org_members_org ON organization_members(organization_id);
				CREATE INDEX IF NOT EXISTS idx_org_members_user ON organization_members(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create org_invites table",
			SQL: `
				CREATE TABLE IF NOT EXISTS org_invites (
					id TEXT PRIMARY KEY,
					organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					author_id TEXT NOT NULL REFERENCES users(id),
					email TEXT NOT NULL,
					role TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL,
					expires_at TIMESTAMP NOT NULL,
					UNIQUE(organization_id, email)
				);

				CREATE INDEX IF NOT EXISTS idx_org_invites_org ON org_invites(organization_id);
				CREATE INDEX IF NOT EXISTS idx_org_invites_email ON org_invites(email);
			`,
		},
	}
}

// RunMigrations executes all pending organization migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orgs_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM orgs_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO orgs_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
