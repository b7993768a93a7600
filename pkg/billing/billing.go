package billing

import (
	"fmt"
)

// Per-unit prices. Seats are billed per member, projects per project.
const (
	SeatUnitPrice    = 10
	ProjectUnitPrice = 20
)

// LineItem is one priced dimension of a quote
type LineItem struct {
	Amount int `json:"amount"`
	Unit   int `json:"unit"`
	Price  int `json:"price"`
}

// Quote is a billing snapshot derived from current counts. It is never
// persisted; every read recomputes it.
type Quote struct {
	Seats    LineItem `json:"seats"`
	Projects LineItem `json:"projects"`
	Total    int      `json:"total"`
}

// ComputeQuote derives a quote from a member count and a project count.
// Pure and total: defined for all non-negative counts, including zero.
func ComputeQuote(memberCount, projectCount int) *Quote {
	seats := LineItem{Amount: memberCount, Unit: SeatUnitPrice, Price: memberCount * SeatUnitPrice}
	projects := LineItem{Amount: projectCount, Unit: ProjectUnitPrice, Price: projectCount * ProjectUnitPrice}
	return &Quote{
		Seats:    seats,
		Projects: projects,
		Total:    seats.Price + projects.Price,
	}
}

// MemberCounter yields the member count of one organization
type MemberCounter interface {
	CountMembers(orgID string) (int, error)
}

// ProjectCounter yields the project count of one organization
type ProjectCounter interface {
	CountProjects(orgID string) (int, error)
}

// Service computes quotes from live organization counts
type Service struct {
	members  MemberCounter
	projects ProjectCounter
}

// NewService creates a billing Service over the given counters
func NewService(members MemberCounter, projects ProjectCounter) *Service {
	return &Service{members: members, projects: projects}
}

// QuoteForOrganization computes the current quote for one organization.
// Counts are scoped strictly to that organization.
func (s *Service) QuoteForOrganization(orgID string) (*Quote, error) {
	memberCount, err := s.members.CountMembers(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	projectCount, err := s.projects.CountProjects(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	return ComputeQuote(memberCount, projectCount), nil
}
