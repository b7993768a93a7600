package projects

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced project does not exist
var ErrNotFound = errors.New("project not found")

// Project is a unit of work inside an organization. OwnerID is the creating
// user; owners get extra grants on their own projects regardless of role.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Description    string    `json:"description,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateProjectRequest is the payload for creating a project
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectRequest carries a partial project update. Nil fields are left
// untouched.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// Service is the authoritative store for projects
type Service interface {
	CreateProject(project *Project) error
	GetProject(orgID, projectID string) (*Project, error)
	GetProjectBySlug(orgID, slug string) (*Project, error)
	ListProjects(orgID string) ([]*Project, error)
	UpdateProject(orgID, projectID string, req *UpdateProjectRequest) error
	DeleteProject(orgID, projectID string) error
	DeleteProjectsForOrganization(orgID string) error
	CountProjects(orgID string) (int, error)
}
