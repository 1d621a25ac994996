package cabinet

import (
	"time"

	"gorm.io/gorm"

	cabinetDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/cabinet"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/workflow"
)

type Cabinet struct {
	ID              int64           `json:"id"`
	OrganizationID  int64           `json:"organization_id"`
	SpaceID         int64           `json:"space_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Status          workflow.Status `json:"status"`
	CreatorID       int64           `json:"creator_id"`
	ApproverID      *int64          `json:"approver_id,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	Version         int64           `json:"version"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (c *Cabinet) Target() permission.Target {
	return permission.Target{
		Kind:           permission.KindCabinet,
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		CabinetID:      c.ID,
		CreatorID:      c.CreatorID,
	}
}

// MemberPermission is a cabinet grant plus who set it.
type MemberPermission struct {
	permission.CabinetPermission
	GrantedBy int64     `json:"granted_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ToDataModel(c *Cabinet) *cabinetDatamodel.Cabinet {
	row := &cabinetDatamodel.Cabinet{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		SpaceID:        c.SpaceID,
		Name:           c.Name,
		Description:    c.Description,
		ApprovalState: workflowDatamodel.ApprovalState{
			Status:          string(c.Status),
			CreatorID:       c.CreatorID,
			ApproverID:      c.ApproverID,
			RejectionReason: c.RejectionReason,
			SubmittedAt:     c.SubmittedAt,
			DecidedAt:       c.DecidedAt,
			Version:         c.Version,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.DeletedAt != nil {
		row.DeletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	}
	return row
}

func FromDataModel(row *cabinetDatamodel.Cabinet) *Cabinet {
	c := &Cabinet{
		ID:              row.ID,
		OrganizationID:  row.OrganizationID,
		SpaceID:         row.SpaceID,
		Name:            row.Name,
		Description:     row.Description,
		Status:          workflow.Status(row.Status),
		CreatorID:       row.CreatorID,
		ApproverID:      row.ApproverID,
		RejectionReason: row.RejectionReason,
		Version:         row.Version,
		SubmittedAt:     row.SubmittedAt,
		DecidedAt:       row.DecidedAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.DeletedAt.Valid {
		t := row.DeletedAt.Time
		c.DeletedAt = &t
	}
	return c
}

func PermissionToDataModel(p *MemberPermission) *cabinetDatamodel.MemberPermission {
	return &cabinetDatamodel.MemberPermission{
		CabinetID:     p.CabinetID,
		UserID:        p.UserID,
		ReadRecords:   p.ReadRecords,
		CreateRecords: p.CreateRecords,
		UpdateRecords: p.UpdateRecords,
		DeleteRecords: p.DeleteRecords,
		ManageCabinet: p.ManageCabinet,
		DownloadFiles: p.DownloadFiles,
		ExportTables:  p.ExportTables,
		GrantedBy:     p.GrantedBy,
	}
}

func PermissionFromDataModel(row *cabinetDatamodel.MemberPermission) *MemberPermission {
	return &MemberPermission{
		CabinetPermission: permission.CabinetPermission{
			CabinetID:     row.CabinetID,
			UserID:        row.UserID,
			ReadRecords:   row.ReadRecords,
			CreateRecords: row.CreateRecords,
			UpdateRecords: row.UpdateRecords,
			DeleteRecords: row.DeleteRecords,
			ManageCabinet: row.ManageCabinet,
			DownloadFiles: row.DownloadFiles,
			ExportTables:  row.ExportTables,
		},
		GrantedBy: row.GrantedBy,
		UpdatedAt: row.UpdatedAt,
	}
}
