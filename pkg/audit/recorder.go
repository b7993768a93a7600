package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit bounds audit listings when the caller asks for everything
const DefaultListLimit = 100

// Recorder persists audit events
type Recorder interface {
	Record(ctx context.Context, event *Event) error
	ListForOrganization(ctx context.Context, orgID string, limit int) ([]*Event, error)
}

// MemoryRecorder keeps events in memory. Used by tests and the in-memory
// server mode.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryRecorder creates an empty MemoryRecorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends an event
func (r *MemoryRecorder) Record(ctx context.Context, event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *event
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, &stored)
	return nil
}

// ListForOrganization returns the organization's events newest first
func (r *MemoryRecorder) ListForOrganization(ctx context.Context, orgID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Event
	for _, e := range r.events {
		if e.OrganizationID == orgID {
			copy := *e
			out = append(out, &copy)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
