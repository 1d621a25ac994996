package organization

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	"github.com/frahmantamala/docflow/internal/permission"
)

type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Organization) Target() permission.Target {
	return permission.Target{Kind: permission.KindOrganization, ID: o.ID, OrganizationID: o.ID, OwnerID: o.OwnerID}
}

type Member struct {
	ID             int64                        `json:"id"`
	OrganizationID int64                        `json:"organization_id"`
	UserID         int64                        `json:"user_id"`
	Role           permission.Role              `json:"role"`
	Status         permission.MembershipStatus  `json:"status"`
	Custom         permission.CustomPermissions `json:"custom_permissions"`
	InvitedBy      *int64                       `json:"invited_by,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

func (m *Member) Membership() *permission.Membership {
	return &permission.Membership{
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Role:           m.Role,
		Status:         m.Status,
		Custom:         m.Custom,
	}
}

// Capabilities is the effective permission set of one member.
type Capabilities struct {
	OrganizationID int64                       `json:"organization_id"`
	UserID         int64                       `json:"user_id"`
	CabinetID      int64                       `json:"cabinet_id,omitempty"`
	Role           permission.Role             `json:"role"`
	Status         permission.MembershipStatus `json:"status"`
	Capabilities   []permission.Capability     `json:"capabilities"`
}

func ToDataModel(o *Organization) *orgDatamodel.Organization {
	return &orgDatamodel.Organization{
		ID:        o.ID,
		Name:      o.Name,
		OwnerID:   o.OwnerID,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func FromDataModel(row *orgDatamodel.Organization) *Organization {
	return &Organization{
		ID:        row.ID,
		Name:      row.Name,
		OwnerID:   row.OwnerID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func MemberToDataModel(m *Member) (*orgDatamodel.Membership, error) {
	row := &orgDatamodel.Membership{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		UserID:         m.UserID,
		Role:           m.Role.String(),
		Status:         string(m.Status),
		InvitedBy:      m.InvitedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	custom, err := EncodeCustom(m.Custom)
	if err != nil {
		return nil, err
	}
	row.CustomPermissions = custom
	return row, nil
}

func MemberFromDataModel(row *orgDatamodel.Membership) (*Member, error) {
	role, err := permission.ParseRole(row.Role)
	if err != nil {
		return nil, err
	}
	m := &Member{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		UserID:         row.UserID,
		Role:           role,
		Status:         permission.MembershipStatus(row.Status),
		InvitedBy:      row.InvitedBy,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if len(row.CustomPermissions) > 0 && string(row.CustomPermissions) != "null" {
		if err := json.Unmarshal(row.CustomPermissions, &m.Custom); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// EncodeCustom stores an empty override set as NULL.
func EncodeCustom(c permission.CustomPermissions) (datatypes.JSON, error) {
	if c.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode custom permissions: %w", err)
	}
	return datatypes.JSON(b), nil
}
