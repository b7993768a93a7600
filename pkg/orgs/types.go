package orgs

import (
	"errors"
	"time"

	"github.com/rosterhq/roster/pkg/ability"
)

// Sentinel errors for the membership/invite/organization invariants. Callers
// match with errors.Is; the HTTP layer maps them onto status codes.
var (
	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateInvite is returned when a pending invite already exists
	// for the (organization, email) pair
	ErrDuplicateInvite = errors.New("invite already exists for this email")

	// ErrDuplicateMember is returned when a member with the invited email
	// already belongs to the organization
	ErrDuplicateMember = errors.New("member with this email already exists")

	// ErrDuplicateDomain is returned when another organization already
	// claims the domain
	ErrDuplicateDomain = errors.New("domain already claimed by another organization")

	// ErrNotAMember is returned when an operation targets a user without a
	// membership in the organization
	ErrNotAMember = errors.New("user is not a member of this organization")

	// ErrEmailMismatch is returned when the accepting or rejecting user's
	// email does not equal the invite's email
	ErrEmailMismatch = errors.New("invite belongs to another email")

	// ErrInviteExpired is returned when accepting or rejecting an invite
	// past its expiry
	ErrInviteExpired = errors.New("invite has expired")
)

// DefaultInviteTTL is how long an invite stays acceptable
const DefaultInviteTTL = 7 * 24 * time.Hour

// Organization is a tenant. Domain, when set, is unique across all
// organizations; auto-join additionally requires AttachByDomain.
type Organization struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Domain         string    `json:"domain,omitempty"`
	AttachByDomain bool      `json:"attach_by_domain"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Member joins a user to an organization with exactly one role. Unique per
// (organization_id, user_id). Name, Email and AvatarURL are display fields
// joined from the users table on reads.
type Member struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	UserID         string       `json:"user_id"`
	Role           ability.Role `json:"role"`
	CreatedAt      time.Time    `json:"created_at"`

	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Invite is a pending offer of membership, unique per (organization_id,
// email). Accept, reject and revoke all delete the row; no terminal status
// is retained.
type Invite struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	AuthorID       string       `json:"author_id"`
	Email          string       `json:"email"`
	Role           ability.Role `json:"role"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      time.Time    `json:"expires_at"`

	// Display fields joined on reads
	AuthorName       string `json:"author_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// Pending reports whether the invite is still acceptable at t
func (i *Invite) Pending(t time.Time) bool {
	return i.ExpiresAt.IsZero() || t.Before(i.ExpiresAt)
}

// UpdateOrgRequest carries a partial organization update. Nil fields are
// left untouched.
type UpdateOrgRequest struct {
	Name           *string `json:"name,omitempty"`
	Domain         *string `json:"domain,omitempty"`
	AttachByDomain *bool   `json:"attach_by_domain,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
}

// CreateOrgRequest is the payload for creating an organization
type CreateOrgRequest struct {
	Name           string `json:"name"`
	Domain         string `json:"domain,omitempty"`
	AttachByDomain bool   `json:"attach_by_domain"`
}

// CreateInviteRequest is the payload for creating an invite
type CreateInviteRequest struct {
	Email string       `json:"email"`
	Role  ability.Role `json:"role"`
}

// UpdateMemberRequest is the payload for changing a member's role
type UpdateMemberRequest struct {
	Role ability.Role `json:"role"`
}

// Service is the authoritative store for organizations, memberships and
// invites. Both the PostgreSQL and the in-memory implementations satisfy it.
type Service interface {
	// Organization lifecycle
	CreateOrganization(org *Organization) error
	GetOrganization(id string) (*Organization, error)
	GetOrganizationBySlug(slug string) (*Organization, error)
	GetOrganizationByDomain(domain string) (*Organization, error)
	ListOrganizationsForUser(userID string) ([]*Organization, error)
	UpdateOrganization(id string, req *UpdateOrgRequest) error
	TransferOwnership(orgID, newOwnerID string) error
	ShutdownOrganization(orgID string) error
	AutoJoinByDomain(userID, email string) (*Organization, error)

	// Membership
	ListMembers(orgID string) ([]*Member, error)
	GetMember(orgID, userID string) (*Member, error)
	GetMemberByID(orgID, memberID string) (*Member, error)
	GetMemberByEmail(orgID, email string) (*Member, error)
	UpdateMemberRole(orgID, userID string, role ability.Role) error
	UpdateMemberRoleByID(orgID, memberID string, role ability.Role) error
	RemoveMember(orgID, memberID string) error
	CountMembers(orgID string) (int, error)

	// Invite lifecycle
	CreateInvite(invite *Invite) error
	GetInvite(id string) (*Invite, error)
	ListInvites(orgID string) ([]*Invite, error)
	ListPendingInvitesForUser(userID string) ([]*Invite, error)
	AcceptInvite(inviteID, userID string) error
	RejectInvite(inviteID, userID string) error
	RevokeInvite(inviteID string) error
	CleanupExpiredInvites() (int64, error)
}
