package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRecorder persists audit events in SQL. The queries stick to the
// portable subset that runs on both PostgreSQL and SQLite.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder creates a recorder over the given database
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Record inserts one event
func (r *PostgresRecorder) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, organization_id, actor_id, action, target_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.OrganizationID, event.ActorID, string(event.Action),
		event.TargetID, string(metadata), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// ListForOrganization returns the organization's events newest first
func (r *PostgresRecorder) ListForOrganization(ctx context.Context, orgID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, organization_id, actor_id, action, target_id, metadata, created_at
		 FROM audit_events
		 WHERE organization_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e        Event
			action   string
			metadata string
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.ActorID, &action, &e.TargetID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Action = Action(action)
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
