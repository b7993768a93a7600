package ability

import "fmt"

// Ability answers can/cannot queries for one resolved user. It is a pure
// view over the static grant tables plus the subject instance passed in,
// and is safe for concurrent use.
type Ability struct {
	user   User
	grants []Grant
}

// DefineAbilityFor builds the ability for a user. The role must belong to
// the closed set; an unknown role means the rule table has no entry for it,
// which is a deployment defect rather than bad input, so this panics.
func DefineAbilityFor(u User) *Ability {
	grants, ok := roleGrants[u.Role]
	if !ok {
		panic(fmt.Sprintf("ability: no grant table for role %q", u.Role))
	}

	all := make([]Grant, 0, len(grants)+len(ownershipGrants))
	all = append(all, grants...)
	// Ownership grants apply to every role: owning a resource always
	// carries deletion and transfer rights on that specific instance.
	all = append(all, ownershipGrants...)

	return &Ability{user: u, grants: all}
}

// Can reports whether the user may perform action on subject. Absence of a
// matching grant is a deny; there is no deny list.
func (a *Ability) Can(action Action, subject Subject) bool {
	for _, g := range a.grants {
		if !actionMatches(g.Action, action) {
			continue
		}
		if !kindMatches(g.On, subject.Kind()) {
			continue
		}
		if g.When == nil {
			return true
		}
		if isInstance(subject) && g.When(a.user, subject) {
			return true
		}
	}
	return false
}

// Cannot is the negation of Can
func (a *Ability) Cannot(action Action, subject Subject) bool {
	return !a.Can(action, subject)
}

// User returns the user this ability was built for
func (a *Ability) User() User { return a.user }

func actionMatches(granted, requested Action) bool {
	return granted == ActionManage || granted == requested
}

func kindMatches(granted, requested SubjectKind) bool {
	return granted == SubjectAll || granted == requested
}

// isInstance reports whether the subject carries instance fields. Bare
// SubjectKind values are collection-level and never satisfy predicates.
func isInstance(s Subject) bool {
	_, bare := s.(SubjectKind)
	return !bare
}

// ownsSubject matches organization and project instances owned by the user
func ownsSubject(u User, s Subject) bool {
	switch sub := s.(type) {
	case OrganizationSubject:
		return sub.OwnerID == u.ID
	case ProjectSubject:
		return sub.OwnerID == u.ID
	}
	return false
}

// isSelf matches the user's own member entry
func isSelf(u User, s Subject) bool {
	sub, ok := s.(UserSubject)
	return ok && sub.ID == u.ID
}

// roleGrants is the closed role-indexed rule table. Evaluation is additive:
// a permissive grant from any row wins, and nothing here revokes.
var roleGrants = map[Role][]Grant{
	RoleAdmin: {
		{Action: ActionManage, On: SubjectOrganization},
		{Action: ActionManage, On: SubjectProject},
		{Action: ActionManage, On: SubjectInvite},
		{Action: ActionManage, On: SubjectUser},
		{Action: ActionGet, On: SubjectBilling},
	},
	RoleMember: {
		{Action: ActionGet, On: SubjectProject},
		{Action: ActionCreate, On: SubjectProject},
		{Action: ActionUpdate, On: SubjectProject, When: ownsSubject},
		{Action: ActionDelete, On: SubjectProject, When: ownsSubject},
		{Action: ActionGet, On: SubjectUser, When: isSelf},
	},
	RoleBilling: {
		{Action: ActionGet, On: SubjectBilling},
	},
}

// ownershipGrants are appended for every role
var ownershipGrants = []Grant{
	{Action: ActionDelete, On: SubjectOrganization, When: ownsSubject},
	{Action: ActionTransferOwnership, On: SubjectOrganization, When: ownsSubject},
	{Action: ActionDelete, On: SubjectProject, When: ownsSubject},
}
