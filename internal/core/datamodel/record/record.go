package record

import (
	"time"

	"github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
)

type Record struct {
	ID                     int64  `gorm:"primaryKey"`
	OrganizationID         int64  `gorm:"column:organization_id;not null;index"`
	SpaceID                int64  `gorm:"column:space_id;not null"`
	CabinetID              int64  `gorm:"column:cabinet_id;not null;index"`
	Title                  string `gorm:"column:title;not null"`
	Description            string `gorm:"column:description"`
	FileURL                string `gorm:"column:file_url"`
	FileName               string `gorm:"column:file_name"`
	ContentType            string `gorm:"column:content_type"`
	Size                   int64  `gorm:"column:size"`
	workflow.ApprovalState `gorm:"embedded"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Record) TableName() string {
	return "records"
}
