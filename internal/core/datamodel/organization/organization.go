package organization

import (
	"time"

	"gorm.io/datatypes"
)

type Organization struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	OwnerID   int64     `gorm:"column:owner_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Organization) TableName() string {
	return "organizations"
}

// Membership rows keep history; at most one row per (organization, user) is active.
type Membership struct {
	ID                int64          `gorm:"primaryKey"`
	OrganizationID    int64          `gorm:"column:organization_id;not null;index:idx_membership_org_user"`
	UserID            int64          `gorm:"column:user_id;not null;index:idx_membership_org_user"`
	Role              string         `gorm:"column:role;not null"`
	Status            string         `gorm:"column:status;not null;default:pending"`
	CustomPermissions datatypes.JSON `gorm:"column:custom_permissions"`
	InvitedBy         *int64         `gorm:"column:invited_by"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Membership) TableName() string {
	return "organization_memberships"
}
