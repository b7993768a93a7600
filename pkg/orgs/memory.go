package orgs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rosterhq/roster/pkg/ability"
)

// UserRecord is the slice of a user the in-memory service needs to resolve
// invite emails and member display fields.
type UserRecord struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// MemoryService is an in-memory implementation of Service with the same
// invariants as PostgresService. It backs the API handler tests and the
// database-less dev mode; state is lost on restart.
type MemoryService struct {
	mu      sync.RWMutex
	users   map[string]*UserRecord
	orgs    map[string]*Organization
	members map[string]*Member
	invites map[string]*Invite
}

// NewMemoryService creates an empty MemoryService
func NewMemoryService() *MemoryService {
	return &MemoryService{
		users:   make(map[string]*UserRecord),
		orgs:    make(map[string]*Organization),
		members: make(map[string]*Member),
		invites: make(map[string]*Invite),
	}
}

// PutUser registers or replaces a user record
func (s *MemoryService) PutUser(u UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := u
	s.users[u.ID] = &copy
}

// CreateOrganization creates an organization and its owner membership
func (s *MemoryService) CreateOrganization(org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.Slug == "" {
		taken := map[string]bool{}
		for _, o := range s.orgs {
			taken[o.Slug] = true
		}
		org.Slug = nextSlug(Slugify(org.Name), taken)
	}
	if org.Domain != "" {
		for _, o := range s.orgs {
			if o.Domain == org.Domain {
				return fmt.Errorf("domain %q: %w", org.Domain, ErrDuplicateDomain)
			}
		}
	}

	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	stored := *org
	s.orgs[org.ID] = &stored
	s.addMemberLocked(org.ID, org.OwnerID, ability.RoleAdmin)
	return nil
}

// GetOrganization retrieves an organization by ID
func (s *MemoryService) GetOrganization(id string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %q: %w", id, ErrNotFound)
	}
	copy := *org
	return &copy, nil
}

// GetOrganizationBySlug retrieves an organization by slug
func (s *MemoryService) GetOrganizationBySlug(slug string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.Slug == slug {
			copy := *org
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("organization %q: %w", slug, ErrNotFound)
}

// GetOrganizationByDomain retrieves the organization claiming a domain
func (s *MemoryService) GetOrganizationByDomain(domain string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.Domain != "" && org.Domain == domain {
			copy := *org
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("organization %q: %w", domain, ErrNotFound)
}

// ListOrganizationsForUser lists organizations the user is a member of
func (s *MemoryService) ListOrganizationsForUser(userID string) ([]*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Organization
	for _, m := range s.members {
		if m.UserID == userID {
			if org, ok := s.orgs[m.OrganizationID]; ok {
				copy := *org
				out = append(out, &copy)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateOrganization applies a partial update with the same domain
// uniqueness check as the SQL implementation
func (s *MemoryService) UpdateOrganization(id string, req *UpdateOrgRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[id]
	if !ok {
		return fmt.Errorf("organization %q: %w", id, ErrNotFound)
	}
	if req.Domain != nil && *req.Domain != "" {
		for _, o := range s.orgs {
			if o.ID != id && o.Domain == *req.Domain {
				return fmt.Errorf("domain %q: %w", *req.Domain, ErrDuplicateDomain)
			}
		}
	}

	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.Domain != nil {
		org.Domain = *req.Domain
	}
	if req.AttachByDomain != nil {
		org.AttachByDomain = *req.AttachByDomain
	}
	if req.AvatarURL != nil {
		org.AvatarURL = *req.AvatarURL
	}
	org.UpdatedAt = time.Now().UTC()
	return nil
}

// TransferOwnership promotes the target member and reassigns the owner.
// Both mutations happen under one lock; a failed precondition mutates
// nothing.
func (s *MemoryService) TransferOwnership(orgID, newOwnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return fmt.Errorf("organization %q: %w", orgID, ErrNotFound)
	}

	var target *Member
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.UserID == newOwnerID {
			target = m
			break
		}
	}
	if target == nil {
		return fmt.Errorf("user %q in organization %q: %w", newOwnerID, orgID, ErrNotAMember)
	}

	target.Role = ability.RoleAdmin
	org.OwnerID = newOwnerID
	org.UpdatedAt = time.Now().UTC()
	return nil
}

// ShutdownOrganization deletes an organization and everything scoped to it
func (s *MemoryService) ShutdownOrganization(orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.orgs, orgID)
	for id, m := range s.members {
		if m.OrganizationID == orgID {
			delete(s.members, id)
		}
	}
	for id, i := range s.invites {
		if i.OrganizationID == orgID {
			delete(s.invites, id)
		}
	}
	return nil
}

// AutoJoinByDomain joins the user to the organization claiming the email's
// domain, when that organization opted in
func (s *MemoryService) AutoJoinByDomain(userID, email string) (*Organization, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return nil, nil
	}
	domain := email[at+1:]

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, org := range s.orgs {
		if org.Domain == domain && org.AttachByDomain {
			s.addMemberLocked(org.ID, userID, ability.RoleMember)
			copy := *org
			return &copy, nil
		}
	}
	return nil, nil
}

// ListMembers retrieves all members of an organization
func (s *MemoryService) ListMembers(orgID string) ([]*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Member
	for _, m := range s.members {
		if m.OrganizationID == orgID {
			out = append(out, s.decorateMember(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetMember retrieves a member by (organization, user)
func (s *MemoryService) GetMember(orgID, userID string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			return s.decorateMember(m), nil
		}
	}
	return nil, fmt.Errorf("member %q in organization %q: %w", userID, orgID, ErrNotFound)
}

// GetMemberByID retrieves a member by (organization, member id)
func (s *MemoryService) GetMemberByID(orgID, memberID string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok || m.OrganizationID != orgID {
		return nil, fmt.Errorf("member %q in organization %q: %w", memberID, orgID, ErrNotFound)
	}
	return s.decorateMember(m), nil
}

// GetMemberByEmail retrieves a member by (organization, user email)
func (s *MemoryService) GetMemberByEmail(orgID, email string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.OrganizationID != orgID {
			continue
		}
		if u, ok := s.users[m.UserID]; ok && u.Email == email {
			return s.decorateMember(m), nil
		}
	}
	return nil, fmt.Errorf("member %q in organization %q: %w", email, orgID, ErrNotFound)
}

// UpdateMemberRole changes a member's role, addressed by user ID
func (s *MemoryService) UpdateMemberRole(orgID, userID string, role ability.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			m.Role = role
			return nil
		}
	}
	return fmt.Errorf("member %q in organization %q: %w", userID, orgID, ErrNotFound)
}

// UpdateMemberRoleByID changes a member's role, addressed by member ID
func (s *MemoryService) UpdateMemberRoleByID(orgID, memberID string, role ability.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[memberID]
	if !ok || m.OrganizationID != orgID {
		return fmt.Errorf("member %q in organization %q: %w", memberID, orgID, ErrNotFound)
	}
	m.Role = role
	return nil
}

// RemoveMember removes a member; removing an absent member is a no-op
func (s *MemoryService) RemoveMember(orgID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[memberID]; ok && m.OrganizationID == orgID {
		delete(s.members, memberID)
	}
	return nil
}

// CountMembers returns the member count for one organization
func (s *MemoryService) CountMembers(orgID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.members {
		if m.OrganizationID == orgID {
			count++
		}
	}
	return count, nil
}

// CreateInvite creates a pending invite, enforcing both uniqueness
// invariants
func (s *MemoryService) CreateInvite(invite *Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.invites {
		if i.OrganizationID == invite.OrganizationID && i.Email == invite.Email {
			return fmt.Errorf("invite for %q: %w", invite.Email, ErrDuplicateInvite)
		}
	}
	for _, m := range s.members {
		if m.OrganizationID != invite.OrganizationID {
			continue
		}
		if u, ok := s.users[m.UserID]; ok && u.Email == invite.Email {
			return fmt.Errorf("invite for %q: %w", invite.Email, ErrDuplicateMember)
		}
	}

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
	stored := *invite
	s.invites[invite.ID] = &stored
	return nil
}

// GetInvite retrieves an invite by ID
func (s *MemoryService) GetInvite(id string) (*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invite, ok := s.invites[id]
	if !ok {
		return nil, fmt.Errorf("invite %q: %w", id, ErrNotFound)
	}
	return s.decorateInvite(invite), nil
}

// ListInvites lists pending invites for an organization
func (s *MemoryService) ListInvites(orgID string) ([]*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Invite
	for _, i := range s.invites {
		if i.OrganizationID == orgID {
			out = append(out, s.decorateInvite(i))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListPendingInvitesForUser lists invites addressed to the user's email
func (s *MemoryService) ListPendingInvitesForUser(userID string) ([]*Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	var out []*Invite
	for _, i := range s.invites {
		if i.Email == user.Email {
			out = append(out, s.decorateInvite(i))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AcceptInvite consumes the invite and creates the membership
func (s *MemoryService) AcceptInvite(inviteID, userID string) error {
	return s.consumeInvite(inviteID, userID, true)
}

// RejectInvite deletes the invite without creating a membership
func (s *MemoryService) RejectInvite(inviteID, userID string) error {
	return s.consumeInvite(inviteID, userID, false)
}

func (s *MemoryService) consumeInvite(inviteID, userID string, join bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok {
		return fmt.Errorf("invite %q: %w", inviteID, ErrNotFound)
	}
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if user.Email != invite.Email {
		return fmt.Errorf("invite %q: %w", inviteID, ErrEmailMismatch)
	}
	if !invite.Pending(time.Now()) {
		return fmt.Errorf("invite %q: %w", inviteID, ErrInviteExpired)
	}

	if join {
		s.addMemberLocked(invite.OrganizationID, userID, invite.Role)
	}
	delete(s.invites, inviteID)
	return nil
}

// RevokeInvite deletes an invite; revoking an absent invite is a no-op
func (s *MemoryService) RevokeInvite(inviteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invites, inviteID)
	return nil
}

// CleanupExpiredInvites deletes invites past their expiry
func (s *MemoryService) CleanupExpiredInvites() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var removed int64
	for id, i := range s.invites {
		if !i.Pending(now) {
			delete(s.invites, id)
			removed++
		}
	}
	return removed, nil
}

// addMemberLocked inserts a membership unless one already exists. Callers
// must hold the write lock.
func (s *MemoryService) addMemberLocked(orgID, userID string, role ability.Role) {
	for _, m := range s.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			return
		}
	}
	id := uuid.NewString()
	s.members[id] = &Member{
		ID:             id,
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		CreatedAt:      time.Now().UTC(),
	}
}

func (s *MemoryService) decorateMember(m *Member) *Member {
	copy := *m
	if u, ok := s.users[m.UserID]; ok {
		copy.Name = u.Name
		copy.Email = u.Email
		copy.AvatarURL = u.AvatarURL
	}
	return &copy
}

func (s *MemoryService) decorateInvite(i *Invite) *Invite {
	copy := *i
	if u, ok := s.users[i.AuthorID]; ok {
		copy.AuthorName = u.Name
	}
	if o, ok := s.orgs[i.OrganizationID]; ok {
		copy.OrganizationName = o.Name
	}
	return &copy
}
