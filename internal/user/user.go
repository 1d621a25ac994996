package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/user"
	"github.com/frahmantamala/docflow/internal/permission"
)

type User struct {
	ID        int64                    `json:"id"`
	Email     string                   `json:"email"`
	Name      string                   `json:"name"`
	Type      permission.PrincipalType `json:"type"`
	IsActive  bool                     `json:"is_active"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// OrganizationAccess is one of the caller's memberships with what it grants.
type OrganizationAccess struct {
	OrganizationID   int64                       `json:"organization_id"`
	OrganizationName string                      `json:"organization_name"`
	Role             permission.Role             `json:"role"`
	Status           permission.MembershipStatus `json:"status"`
	Capabilities     []permission.Capability     `json:"capabilities"`
}

type Profile struct {
	User
	Organizations []OrganizationAccess `json:"organizations"`
}

// MembershipRow is a membership joined with its organization's name.
type MembershipRow struct {
	Membership       permission.Membership
	OrganizationName string
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Type:      permission.PrincipalType(u.Type),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func ToDataModel(u *User, passwordHash string) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: passwordHash,
		Type:         string(u.Type),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
