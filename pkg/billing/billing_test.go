package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/roster/pkg/ability"
	"github.com/rosterhq/roster/pkg/orgs"
	"github.com/rosterhq/roster/pkg/projects"
)

func TestComputeQuote(t *testing.T) {
	tests := []struct {
		name         string
		memberCount  int
		projectCount int
		expected     *Quote
	}{
		{
			name:         "empty organization",
			memberCount:  0,
			projectCount: 0,
			expected: &Quote{
				Seats:    LineItem{Amount: 0, Unit: 10, Price: 0},
				Projects: LineItem{Amount: 0, Unit: 20, Price: 0},
				Total:    0,
			},
		},
		{
			name:         "five members three projects",
			memberCount:  5,
			projectCount: 3,
			expected: &Quote{
				Seats:    LineItem{Amount: 5, Unit: 10, Price: 50},
				Projects: LineItem{Amount: 3, Unit: 20, Price: 60},
				Total:    110,
			},
		},
		{
			name:         "members only",
			memberCount:  2,
			projectCount: 0,
			expected: &Quote{
				Seats:    LineItem{Amount: 2, Unit: 10, Price: 20},
				Projects: LineItem{Amount: 0, Unit: 20, Price: 0},
				Total:    20,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeQuote(tt.memberCount, tt.projectCount))
		})
	}
}

func TestQuoteForOrganization(t *testing.T) {
	orgService := orgs.NewMemoryService()
	projectService := projects.NewMemoryService()
	service := NewService(orgService, projectService)

	orgService.PutUser(orgs.UserRecord{ID: "user-1", Name: "Alice", Email: "alice@acme.com"})
	orgService.PutUser(orgs.UserRecord{ID: "user-2", Name: "Bob", Email: "bob@acme.com"})

	acme := &orgs.Organization{Name: "Acme", OwnerID: "user-1"}
	require.NoError(t, orgService.CreateOrganization(acme))
	globex := &orgs.Organization{Name: "Globex", OwnerID: "user-2"}
	require.NoError(t, orgService.CreateOrganization(globex))

	invite := &orgs.Invite{OrganizationID: acme.ID, AuthorID: "user-1", Email: "bob@acme.com", Role: ability.RoleMember}
	require.NoError(t, orgService.CreateInvite(invite))
	require.NoError(t, orgService.AcceptInvite(invite.ID, "user-2"))

	require.NoError(t, projectService.CreateProject(&projects.Project{OrganizationID: acme.ID, OwnerID: "user-1", Name: "Website"}))
	require.NoError(t, projectService.CreateProject(&projects.Project{OrganizationID: globex.ID, OwnerID: "user-2", Name: "Skunkworks"}))

	// Counts are scoped to the organization; Globex's member and project
	// never leak into Acme's quote.
	quote, err := service.QuoteForOrganization(acme.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, quote.Seats.Amount)
	assert.Equal(t, 20, quote.Seats.Price)
	assert.Equal(t, 1, quote.Projects.Amount)
	assert.Equal(t, 20, quote.Projects.Price)
	assert.Equal(t, 40, quote.Total)

	quote, err = service.QuoteForOrganization(globex.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, quote.Seats.Amount)
	assert.Equal(t, 30, quote.Total)
}
