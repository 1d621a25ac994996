package record

import (
	"io"
	"time"

	"gorm.io/gorm"

	recordDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/record"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/workflow"
)

type Record struct {
	ID              int64           `json:"id"`
	OrganizationID  int64           `json:"organization_id"`
	SpaceID         int64           `json:"space_id"`
	CabinetID       int64           `json:"cabinet_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	FileURL         string          `json:"file_url,omitempty"`
	FileName        string          `json:"file_name,omitempty"`
	ContentType     string          `json:"content_type,omitempty"`
	Size            int64           `json:"size,omitempty"`
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

func (r *Record) Target() permission.Target {
	return permission.Target{
		Kind:           permission.KindRecord,
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		CabinetID:      r.CabinetID,
		CreatorID:      r.CreatorID,
	}
}

// Upload is a file arriving with a request.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

func ToDataModel(r *Record) *recordDatamodel.Record {
	row := &recordDatamodel.Record{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		SpaceID:        r.SpaceID,
		CabinetID:      r.CabinetID,
		Title:          r.Title,
		Description:    r.Description,
		FileURL:        r.FileURL,
		FileName:       r.FileName,
		ContentType:    r.ContentType,
		Size:           r.Size,
		ApprovalState: workflowDatamodel.ApprovalState{
			Status:          string(r.Status),
			CreatorID:       r.CreatorID,
			ApproverID:      r.ApproverID,
			RejectionReason: r.RejectionReason,
			SubmittedAt:     r.SubmittedAt,
			DecidedAt:       r.DecidedAt,
			Version:         r.Version,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.DeletedAt != nil {
		row.DeletedAt = gorm.DeletedAt{Time: *r.DeletedAt, Valid: true}
	}
	return row
}

func FromDataModel(row *recordDatamodel.Record) *Record {
	r := &Record{
		ID:              row.ID,
		OrganizationID:  row.OrganizationID,
		SpaceID:         row.SpaceID,
		CabinetID:       row.CabinetID,
		Title:           row.Title,
		Description:     row.Description,
		FileURL:         row.FileURL,
		FileName:        row.FileName,
		ContentType:     row.ContentType,
		Size:            row.Size,
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
		r.DeletedAt = &t
	}
	return r
}
