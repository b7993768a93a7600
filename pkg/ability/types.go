package ability

// Role represents an organization-level role
type Role string

const (
	RoleAdmin   Role = "admin"   // Full access to organization resources
	RoleMember  Role = "member"  // Can work with projects
	RoleBilling Role = "billing" // Read-only access to billing
)

// Roles returns the closed set of valid roles
func Roles() []Role {
	return []Role{RoleAdmin, RoleMember, RoleBilling}
}

// Valid reports whether the role is part of the closed set
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleBilling:
		return true
	}
	return false
}

// Action represents an action that can be performed on a subject
type Action string

const (
	ActionCreate            Action = "create"
	ActionGet               Action = "get"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionTransferOwnership Action = "transfer_ownership"
	ActionManage            Action = "manage" // Matches every action
)

// SubjectKind represents a resource type an action targets
type SubjectKind string

const (
	SubjectOrganization SubjectKind = "organization"
	SubjectProject      SubjectKind = "project"
	SubjectInvite       SubjectKind = "invite"
	SubjectUser         SubjectKind = "user"
	SubjectBilling      SubjectKind = "billing"
	SubjectAll          SubjectKind = "all" // Matches every subject kind
)

// Subject is a resource a permission check targets. A bare SubjectKind is a
// collection-level subject; the *Subject structs below are instance-level and
// carry the fields ownership predicates need.
type Subject interface {
	Kind() SubjectKind
}

// Kind makes SubjectKind usable directly as a collection-level subject
func (k SubjectKind) Kind() SubjectKind { return k }

// OrganizationSubject is an organization instance under check
type OrganizationSubject struct {
	ID      string
	OwnerID string
}

// Kind returns SubjectOrganization
func (OrganizationSubject) Kind() SubjectKind { return SubjectOrganization }

// ProjectSubject is a project instance under check
type ProjectSubject struct {
	ID      string
	OwnerID string
}

// Kind returns SubjectProject
func (ProjectSubject) Kind() SubjectKind { return SubjectProject }

// UserSubject is a user (member) instance under check
type UserSubject struct {
	ID string
}

// Kind returns SubjectUser
func (UserSubject) Kind() SubjectKind { return SubjectUser }

// User is the resolved acting user an ability is built for
type User struct {
	ID   string
	Role Role
}

// Predicate is an instance-level condition attached to a grant
type Predicate func(u User, s Subject) bool

// Grant allows an action on a subject kind, optionally constrained to
// instances satisfying When. A grant with a predicate never matches a
// collection-level check.
type Grant struct {
	Action Action
	On     SubjectKind
	When   Predicate
}
