package audit

import "time"

// Action names the audited operation
type Action string

const (
	ActionOrgCreated           Action = "org.created"
	ActionOrgUpdated           Action = "org.updated"
	ActionOrgShutdown          Action = "org.shutdown"
	ActionOwnershipTransferred Action = "org.ownership_transferred"

	ActionMemberRoleChanged Action = "member.role_changed"
	ActionMemberRemoved     Action = "member.removed"
	ActionMemberAutoJoined  Action = "member.auto_joined"

	ActionInviteCreated  Action = "invite.created"
	ActionInviteAccepted Action = "invite.accepted"
	ActionInviteRejected Action = "invite.rejected"
	ActionInviteRevoked  Action = "invite.revoked"

	ActionProjectCreated Action = "project.created"
	ActionProjectUpdated Action = "project.updated"
	ActionProjectDeleted Action = "project.deleted"
)

// Event is one audit trail entry. TargetID names the entity the action was
// applied to; Metadata carries small action-specific details such as the old
// and new role of a role change.
type Event struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	ActorID        string            `json:"actor_id"`
	Action         Action            `json:"action"`
	TargetID       string            `json:"target_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
