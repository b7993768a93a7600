// Package ability provides role-based permission evaluation for Roster.
//
// # Overview
//
// An Ability is a queryable permission set built for one resolved user
// (id + organization role). It answers Can/Cannot questions about actions
// on subjects, where a subject is either a resource kind (collection-level
// check) or a resource instance (instance-level check).
//
// # Model
//
// Three closed sets drive evaluation:
//
//	Roles:    admin, member, billing
//	Actions:  create, get, update, delete, transfer_ownership, manage
//	Subjects: organization, project, invite, user, billing, all
//
// Each role maps to a fixed list of grants. A grant pairs an action with a
// subject kind and may carry a predicate over the instance (for example
// "subject.OwnerID == user.ID"). Evaluation is additive: any matching grant
// allows, absence of a match denies, and there is no deny list.
//
// Ownership is not a role. Owning an organization or project grants delete
// and transfer rights on that specific instance regardless of the user's
// role, via predicate grants appended to every role's table.
//
// # Usage
//
// Collection-level check:
//
//	ab := ability.DefineAbilityFor(ability.User{ID: "u1", Role: ability.RoleBilling})
//	ab.Can(ability.ActionGet, ability.SubjectBilling)       // true
//	ab.Can(ability.ActionDelete, ability.SubjectOrganization) // false
//
// Instance-level check:
//
//	sub := ability.ProjectSubject{ID: "p1", OwnerID: "u1"}
//	ab.Can(ability.ActionDelete, sub) // true for the owner, any role
//
// DefineAbilityFor panics on a role outside the closed set: that signals a
// missing rule table entry, a configuration defect rather than user input.
//
// # Related Packages
//
//   - pkg/orgs: membership resolution (which role a user holds in an org)
//   - pkg/middleware: HTTP enforcement built on this package
package ability
