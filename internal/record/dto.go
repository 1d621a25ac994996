package record

import (
	"strings"

	"github.com/frahmantamala/docflow/internal/core/common/validation"
)

type CreateRecordDTO struct {
	CabinetID   int64  `json:"cabinet_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ApproverID  *int64 `json:"approver_id,omitempty"`
}

func (d *CreateRecordDTO) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	v := validation.NewValidator()
	v.Field("cabinet_id", d.CabinetID).Required().Positive()
	v.Field("title", d.Title).Required().MaxLength(255)
	v.Field("approver_id", d.ApproverID).Positive()
	return v.Validate()
}
