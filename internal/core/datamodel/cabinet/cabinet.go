package cabinet

import (
	"time"

	"github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
)

type Cabinet struct {
	ID                     int64  `gorm:"primaryKey"`
	OrganizationID         int64  `gorm:"column:organization_id;not null;index"`
	SpaceID                int64  `gorm:"column:space_id;not null;index"`
	Name                   string `gorm:"column:name;not null"`
	Description            string `gorm:"column:description"`
	workflow.ApprovalState `gorm:"embedded"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cabinet) TableName() string {
	return "cabinets"
}

type MemberPermission struct {
	ID            int64     `gorm:"primaryKey"`
	CabinetID     int64     `gorm:"column:cabinet_id;not null;uniqueIndex:idx_cabinet_member"`
	UserID        int64     `gorm:"column:user_id;not null;uniqueIndex:idx_cabinet_member"`
	ReadRecords   bool      `gorm:"column:read_records;not null;default:false"`
	CreateRecords bool      `gorm:"column:create_records;not null;default:false"`
	UpdateRecords bool      `gorm:"column:update_records;not null;default:false"`
	DeleteRecords bool      `gorm:"column:delete_records;not null;default:false"`
	ManageCabinet bool      `gorm:"column:manage_cabinet;not null;default:false"`
	DownloadFiles bool      `gorm:"column:download_files;not null;default:false"`
	ExportTables  bool      `gorm:"column:export_tables;not null;default:false"`
	GrantedBy     int64     `gorm:"column:granted_by;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MemberPermission) TableName() string {
	return "cabinet_member_permissions"
}
