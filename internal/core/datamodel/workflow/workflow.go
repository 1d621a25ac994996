package workflow

import (
	"time"

	"gorm.io/gorm"
)

// ApprovalState is embedded by every approvable row.
type ApprovalState struct {
	Status          string         `gorm:"column:status;not null;default:draft;index"`
	CreatorID       int64          `gorm:"column:creator_id;not null"`
	ApproverID      *int64         `gorm:"column:approver_id"`
	RejectionReason *string        `gorm:"column:rejection_reason"`
	RejectedBy      *int64         `gorm:"column:rejected_by"`
	SubmittedAt     *time.Time     `gorm:"column:submitted_at"`
	DecidedAt       *time.Time     `gorm:"column:decided_at"`
	Version         int64          `gorm:"column:version;not null;default:1"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

type Reassignment struct {
	ID           int64     `gorm:"primaryKey"`
	ResourceKind string    `gorm:"column:resource_kind;not null;index:idx_reassignment_resource"`
	ResourceID   int64     `gorm:"column:resource_id;not null;index:idx_reassignment_resource"`
	FromUserID   int64     `gorm:"column:from_user_id;not null"`
	ToUserID     int64     `gorm:"column:to_user_id;not null"`
	ActorID      int64     `gorm:"column:actor_id;not null"`
	Reason       string    `gorm:"column:reason;not null"`
	Position     int       `gorm:"column:position;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (Reassignment) TableName() string {
	return "reassignment_records"
}

type TransitionLog struct {
	ID           int64     `gorm:"primaryKey"`
	ResourceKind string    `gorm:"column:resource_kind;not null;index:idx_transition_resource"`
	ResourceID   int64     `gorm:"column:resource_id;not null;index:idx_transition_resource"`
	Action       string    `gorm:"column:action;not null"`
	FromStatus   string    `gorm:"column:from_status;not null"`
	ToStatus     string    `gorm:"column:to_status;not null"`
	ActorID      int64     `gorm:"column:actor_id;not null"`
	Reason       *string   `gorm:"column:reason"`
	Note         *string   `gorm:"column:note"`
	ChainIndex   int       `gorm:"column:chain_index;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (TransitionLog) TableName() string {
	return "transition_logs"
}
