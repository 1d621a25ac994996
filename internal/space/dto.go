package space

import (
	"strings"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/core/common/validation"
	"github.com/frahmantamala/docflow/internal/permission"
)

type CreateSpaceDTO struct {
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ApproverID     *int64 `json:"approver_id,omitempty"`
}

func (d *CreateSpaceDTO) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	v := validation.NewValidator()
	v.Field("organization_id", d.OrganizationID).Required().Positive()
	v.Field("name", d.Name).Required().MaxLength(200)
	v.Field("approver_id", d.ApproverID).Positive()
	return v.Validate()
}

type CreateInvitationDTO struct {
	Email string          `json:"email"`
	Role  permission.Role `json:"role"`
}

func (d *CreateInvitationDTO) Validate() error {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	if err := v.Validate(); err != nil {
		return err
	}
	if d.Role == 0 {
		d.Role = permission.RoleMemberRead
	}
	if !d.Role.Valid() || d.Role == permission.RoleOwner {
		return internal.NewValidationFieldError("role", "role cannot be granted by invitation", internal.ErrCodeValidationFailed)
	}
	return nil
}

type RespondInvitationDTO struct {
	Token  string `json:"token"`
	Accept bool   `json:"accept"`
}

func (d RespondInvitationDTO) Validate() error {
	if strings.TrimSpace(d.Token) == "" {
		return internal.NewValidationFieldError("token", "token is required", internal.ErrCodeValidationFailed)
	}
	return nil
}
