package workflow

import "time"

// ReassignmentRecord is an append-only audit entry. Authorization never reads it.
type ReassignmentRecord struct {
	ID           int64  `json:"id"`
	ResourceKind Kind   `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
	FromUserID   int64  `json:"from_user_id"`
	ToUserID     int64  `json:"to_user_id"`
	ActorID      int64  `json:"actor_id"`
	Reason       string `json:"reason"`
	// Position is the chain slot that changed; -1 is the final approver, 0 for single-approver kinds.
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// TransitionRecord is the audit trail of every applied transition.
type TransitionRecord struct {
	ID           int64     `json:"id"`
	ResourceKind Kind      `json:"resource_kind"`
	ResourceID   int64     `json:"resource_id"`
	Action       Action    `json:"action"`
	FromStatus   Status    `json:"from_status"`
	ToStatus     Status    `json:"to_status"`
	ActorID      int64     `json:"actor_id"`
	Reason       string    `json:"reason,omitempty"`
	Note         string    `json:"note,omitempty"`
	ChainIndex   int       `json:"chain_index"`
	CreatedAt    time.Time `json:"created_at"`
}
