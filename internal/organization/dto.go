package organization

import (
	"strings"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/core/common/validation"
	"github.com/frahmantamala/docflow/internal/permission"
)

type CreateOrganizationDTO struct {
	Name string `json:"name"`
}

func (d *CreateOrganizationDTO) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(255)
	return v.Validate()
}

type AddMemberDTO struct {
	UserID int64           `json:"user_id"`
	Role   permission.Role `json:"role"`
}

func (d *AddMemberDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeValidationFailed)
	}
	if d.Role == 0 {
		d.Role = permission.RoleMemberRead
	}
	if !d.Role.Valid() {
		return internal.NewValidationFieldError("role", "unknown role", internal.ErrCodeValidationFailed)
	}
	return nil
}

type ChangeRoleDTO struct {
	Role permission.Role `json:"role"`
}

func (d *ChangeRoleDTO) Validate() error {
	if !d.Role.Valid() {
		return internal.NewValidationFieldError("role", "role is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type SetStatusDTO struct {
	Status permission.MembershipStatus `json:"status"`
}

func (d *SetStatusDTO) Validate() error {
	if d.Status != permission.MembershipActive && d.Status != permission.MembershipSuspended {
		return internal.NewValidationFieldError("status", "status must be active or suspended", internal.ErrCodeValidationFailed)
	}
	return nil
}
