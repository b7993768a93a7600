// Package orgs provides multi-tenant organization management for Roster.
//
// # Overview
//
// This package manages organizations, memberships, and invites. An
// organization is the tenant boundary: every project, member, and invite
// belongs to exactly one organization, and deleting the organization
// cascades to all of them.
//
// # Invariants
//
//   - One membership per (organization, user); one role per membership.
//   - One pending invite per (organization, email); an email that already
//     belongs to a member cannot be invited again.
//   - A claimed email domain is unique across all organizations.
//   - Ownership transfer promotes the new owner to admin and reassigns
//     owner_id atomically; it fails without side effects if the target is
//     not a member.
//
// # Usage Example
//
// Create an organization (the creator becomes owner and admin member):
//
//	org := &orgs.Organization{Name: "Acme Corp", OwnerID: user.ID}
//	service.CreateOrganization(org)
//
// Invite and accept:
//
//	invite := &orgs.Invite{OrganizationID: org.ID, AuthorID: admin.ID,
//		Email: "dev@acme.com", Role: ability.RoleMember}
//	service.CreateInvite(invite)
//	service.AcceptInvite(invite.ID, invitedUser.ID)
//
// # Related Packages
//
//   - pkg/ability: role grant tables consulted by the API layer
//   - pkg/auth: user accounts referenced by memberships and invites
//   - pkg/billing: seat counts derived from memberships
package orgs
