package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/docflow/internal/workflow"
)

const (
	EventTypeSubmitted              = "workflow.submitted"
	EventTypeChainAdvanced          = "workflow.chain_advanced"
	EventTypeFinalApprovalRequested = "workflow.final_approval_requested"
	EventTypeApproved               = "workflow.approved"
	EventTypeRejected               = "workflow.rejected"
	EventTypeResubmitted            = "workflow.resubmitted"
	EventTypeReassigned             = "workflow.reassigned"
	EventTypeCancelled              = "workflow.cancelled"
	EventTypeDeleted                = "workflow.deleted"
	EventTypeRestored               = "workflow.restored"
	EventTypePurged                 = "workflow.purged"
	EventTypeInvitationCreated      = "space.invitation_created"
)

// WorkflowEventTypes lists every event a transition can produce.
var WorkflowEventTypes = []string{
	EventTypeSubmitted,
	EventTypeChainAdvanced,
	EventTypeFinalApprovalRequested,
	EventTypeApproved,
	EventTypeRejected,
	EventTypeResubmitted,
	EventTypeReassigned,
	EventTypeCancelled,
	EventTypeDeleted,
	EventTypeRestored,
}

// TransitionEvent is published after a transition commits.
type TransitionEvent struct {
	BaseEvent
	Kind            workflow.Kind           `json:"kind"`
	ResourceID      int64                   `json:"resource_id"`
	OrganizationID  int64                   `json:"organization_id"`
	Action          workflow.Action         `json:"action"`
	From            workflow.Status         `json:"from"`
	To              workflow.Status         `json:"to"`
	ActorID         int64                   `json:"actor_id"`
	Reason          string                  `json:"reason,omitempty"`
	Notifications   []workflow.Notification `json:"notifications,omitempty"`
	ReplacedFileURL string                  `json:"replaced_file_url,omitempty"`
}

// TypeFor names the event an outcome produces.
func TypeFor(out *workflow.Outcome) string {
	switch out.Action {
	case workflow.ActionSubmit:
		return EventTypeSubmitted
	case workflow.ActionApprove, workflow.ActionFinalApprove:
		switch {
		case out.To == workflow.StatusPendingFinalApproval:
			return EventTypeFinalApprovalRequested
		case out.ChainAdvanced && out.To == workflow.StatusPendingReview:
			return EventTypeChainAdvanced
		}
		return EventTypeApproved
	case workflow.ActionReject:
		return EventTypeRejected
	case workflow.ActionResubmit:
		return EventTypeResubmitted
	case workflow.ActionReassign:
		return EventTypeReassigned
	case workflow.ActionCancel:
		return EventTypeCancelled
	case workflow.ActionDelete:
		return EventTypeDeleted
	case workflow.ActionRestore:
		return EventTypeRestored
	}
	return "workflow." + string(out.Action)
}

func NewTransitionEvent(out *workflow.Outcome) *TransitionEvent {
	res := out.Resource
	eventType := TypeFor(out)
	return &TransitionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: out.Transition.CreatedAt,
			Data: map[string]interface{}{
				"kind":        string(res.Kind),
				"resource_id": res.ID,
				"action":      string(out.Action),
				"from":        string(out.From),
				"to":          string(out.To),
				"actor_id":    out.ActorID,
			},
		},
		Kind:            res.Kind,
		ResourceID:      res.ID,
		OrganizationID:  res.OrganizationID,
		Action:          out.Action,
		From:            out.From,
		To:              out.To,
		ActorID:         out.ActorID,
		Reason:          out.Transition.Reason,
		Notifications:   append([]workflow.Notification(nil), out.Notifications...),
		ReplacedFileURL: out.ReplacedFileURL,
	}
}

type PurgedEvent struct {
	BaseEvent
	Kind       workflow.Kind `json:"kind"`
	ResourceID int64         `json:"resource_id"`
	FileURL    string        `json:"file_url,omitempty"`
}

func NewPurgedEvent(kind workflow.Kind, id, actorID int64, fileURL string) *PurgedEvent {
	return &PurgedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePurged,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"kind":        string(kind),
				"resource_id": id,
				"actor_id":    actorID,
			},
		},
		Kind:       kind,
		ResourceID: id,
		FileURL:    fileURL,
	}
}

// InvitationCreatedEvent carries what the invitee needs to accept.
type InvitationCreatedEvent struct {
	BaseEvent
	SpaceID   int64     `json:"space_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewInvitationCreatedEvent(spaceID int64, email, token string, expiresAt time.Time) *InvitationCreatedEvent {
	return &InvitationCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeInvitationCreated,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"space_id":   spaceID,
				"email":      email,
				"expires_at": expiresAt,
			},
		},
		SpaceID:   spaceID,
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
	}
}
