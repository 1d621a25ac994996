package cabinet

import (
	"strings"

	"github.com/frahmantamala/docflow/internal/core/common/validation"
)

type CreateCabinetDTO struct {
	SpaceID     int64  `json:"space_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ApproverID  *int64 `json:"approver_id,omitempty"`
}

func (d *CreateCabinetDTO) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	v := validation.NewValidator()
	v.Field("space_id", d.SpaceID).Required().Positive()
	v.Field("name", d.Name).Required().MaxLength(255)
	v.Field("approver_id", d.ApproverID).Positive()
	return v.Validate()
}

// MemberPermissionDTO replaces a member's whole grant set for one cabinet.
type MemberPermissionDTO struct {
	ReadRecords   bool `json:"read_records"`
	CreateRecords bool `json:"create_records"`
	UpdateRecords bool `json:"update_records"`
	DeleteRecords bool `json:"delete_records"`
	ManageCabinet bool `json:"manage_cabinet"`
	DownloadFiles bool `json:"download_files"`
	ExportTables  bool `json:"export_tables"`
}
