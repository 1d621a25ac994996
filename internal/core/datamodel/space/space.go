package space

import (
	"time"

	"github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
)

type Space struct {
	ID                     int64  `gorm:"primaryKey"`
	OrganizationID         int64  `gorm:"column:organization_id;not null;index"`
	Name                   string `gorm:"column:name;not null"`
	Description            string `gorm:"column:description"`
	workflow.ApprovalState `gorm:"embedded"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Space) TableName() string {
	return "spaces"
}

// Invitation rows are unique per (space, email) while pending.
type Invitation struct {
	ID          int64      `gorm:"primaryKey"`
	SpaceID     int64      `gorm:"column:space_id;not null;index"`
	Email       string     `gorm:"column:email;not null"`
	Role        string     `gorm:"column:role;not null"`
	Token       string     `gorm:"column:token;not null;uniqueIndex"`
	Status      string     `gorm:"column:status;not null;default:pending"`
	InvitedBy   int64      `gorm:"column:invited_by;not null"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null"`
	RespondedAt *time.Time `gorm:"column:responded_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Invitation) TableName() string {
	return "space_invitations"
}
