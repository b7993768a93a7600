package projects

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rosterhq/roster/pkg/orgs"
)

// MemoryService is an in-memory implementation of Service used by the API
// handler tests and the database-less dev mode
type MemoryService struct {
	mu       sync.RWMutex
	projects map[string]*Project
}

// NewMemoryService creates an empty MemoryService
func NewMemoryService() *MemoryService {
	return &MemoryService{projects: make(map[string]*Project)}
}

// CreateProject creates a project with an organization-scoped slug
func (s *MemoryService) CreateProject(project *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Slug == "" {
		base := orgs.Slugify(project.Name)
		taken := map[string]bool{}
		for _, p := range s.projects {
			if p.OrganizationID == project.OrganizationID {
				taken[p.Slug] = true
			}
		}
		project.Slug = base
		if taken[base] {
			for i := 2; ; i++ {
				candidate := fmt.Sprintf("%s-%d", base, i)
				if !taken[candidate] {
					project.Slug = candidate
					break
				}
			}
		}
	}

	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	stored := *project
	s.projects[project.ID] = &stored
	return nil
}

// GetProject retrieves a project by ID within an organization
func (s *MemoryService) GetProject(orgID, projectID string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	if !ok || p.OrganizationID != orgID {
		return nil, fmt.Errorf("project %q in organization %q: %w", projectID, orgID, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

// GetProjectBySlug retrieves a project by slug within an organization
func (s *MemoryService) GetProjectBySlug(orgID, slug string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.OrganizationID == orgID && p.Slug == slug {
			copy := *p
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("project %q in organization %q: %w", slug, orgID, ErrNotFound)
}

// ListProjects lists all projects of an organization
func (s *MemoryService) ListProjects(orgID string) ([]*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Project
	for _, p := range s.projects {
		if p.OrganizationID == orgID {
			copy := *p
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateProject applies a partial update
func (s *MemoryService) UpdateProject(orgID, projectID string, req *UpdateProjectRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok || p.OrganizationID != orgID {
		return fmt.Errorf("project %q in organization %q: %w", projectID, orgID, ErrNotFound)
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.AvatarURL != nil {
		p.AvatarURL = *req.AvatarURL
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteProject deletes a project; deleting an absent project is a no-op
func (s *MemoryService) DeleteProject(orgID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[projectID]; ok && p.OrganizationID == orgID {
		delete(s.projects, projectID)
	}
	return nil
}

// CountProjects returns the project count for one organization
func (s *MemoryService) CountProjects(orgID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.projects {
		if p.OrganizationID == orgID {
			count++
		}
	}
	return count, nil
}

// DeleteProjectsForOrganization removes all projects of an organization
func (s *MemoryService) DeleteProjectsForOrganization(orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.projects {
		if p.OrganizationID == orgID {
			delete(s.projects, id)
		}
	}
	return nil
}
