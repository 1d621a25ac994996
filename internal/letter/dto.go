package letter

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/core/common/validation"
	"github.com/frahmantamala/docflow/internal/workflow"
)

type CreateLetterDTO struct {
	SpaceID         int64                `json:"space_id"`
	Subject         string               `json:"subject"`
	Body            string               `json:"body,omitempty"`
	Approvers       []workflow.Approver  `json:"approvers"`
	FinalApproverID int64                `json:"final_approver_id"`
	Placements      []workflow.Placement `json:"placements,omitempty"`
}

// Validate checks shape only. Chain membership rules need the creator and
// live in the service.
func (d *CreateLetterDTO) Validate() error {
	d.Subject = strings.TrimSpace(d.Subject)
	v := validation.NewValidator()
	v.Field("space_id", d.SpaceID).Required().Positive()
	v.Field("subject", d.Subject).Required().MaxLength(255)
	if err := v.Validate(); err != nil {
		return err
	}
	numberApprovers(d.Approvers)
	if err := workflow.ValidateApprovers(d.Approvers, d.FinalApproverID); err != nil {
		return err
	}
	for _, a := range d.Approvers {
		if a.UserID == d.FinalApproverID {
			return internal.NewValidationFieldError("approvers", "the final approver cannot also review", internal.ErrCodeValidationFailed)
		}
	}
	for i, p := range d.Placements {
		if err := p.Validate(); err != nil {
			return internal.NewValidationFieldError(fmt.Sprintf("placements[%d]", i), err.Error(), internal.ErrCodeInvalidPlacement)
		}
	}
	return nil
}

// numberApprovers assigns list order to a chain sent without explicit orders.
func numberApprovers(approvers []workflow.Approver) {
	for _, a := range approvers {
		if a.Order != 0 {
			return
		}
	}
	for i := range approvers {
		approvers[i].Order = i + 1
	}
}
