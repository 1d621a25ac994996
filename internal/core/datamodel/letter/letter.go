package letter

import (
	"time"

	"gorm.io/datatypes"

	"github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
)

type Letter struct {
	ID                     int64          `gorm:"primaryKey"`
	OrganizationID         int64          `gorm:"column:organization_id;not null;index"`
	SpaceID                int64          `gorm:"column:space_id;not null"`
	Subject                string         `gorm:"column:subject;not null"`
	Body                   string         `gorm:"column:body"`
	FileURL                string         `gorm:"column:file_url"`
	FileName               string         `gorm:"column:file_name"`
	Placements             datatypes.JSON `gorm:"column:placements"`
	FinalPlacements        datatypes.JSON `gorm:"column:final_placements"`
	CurrentApproverIndex   int            `gorm:"column:current_approver_index;not null;default:0"`
	FinalApproverID        int64          `gorm:"column:final_approver_id;not null"`
	workflow.ApprovalState `gorm:"embedded"`
	Approvers              []Approver `gorm:"foreignKey:LetterID"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Letter) TableName() string {
	return "letters"
}

type Approver struct {
	ID        int64     `gorm:"primaryKey"`
	LetterID  int64     `gorm:"column:letter_id;not null;uniqueIndex:idx_letter_approver_order"`
	UserID    int64     `gorm:"column:user_id;not null"`
	Order     int       `gorm:"column:approver_order;not null;uniqueIndex:idx_letter_approver_order"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Approver) TableName() string {
	return "letter_approvers"
}
