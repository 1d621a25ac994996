package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	"github.com/frahmantamala/docflow/internal/organization"
	"github.com/frahmantamala/docflow/internal/permission"
)

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, o *organization.Organization) (*organization.Member, error) {
	row := organization.ToDataModel(o)
	var owner *orgDatamodel.Membership
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		owner = &orgDatamodel.Membership{
			OrganizationID: row.ID,
			UserID:         row.OwnerID,
			Role:           permission.RoleOwner.String(),
			Status:         string(permission.MembershipActive),
		}
		return tx.Create(owner).Error
	})
	if err != nil {
		return nil, err
	}
	*o = *organization.FromDataModel(row)
	return organization.MemberFromDataModel(owner)
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id int64) (*organization.Organization, error) {
	var row orgDatamodel.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("organization not found")
		}
		return nil, err
	}
	return organization.FromDataModel(&row), nil
}

// ListForUser returns organizations where userID holds an active membership.
func (r *OrganizationRepository) ListForUser(ctx context.Context, userID int64) ([]*organization.Organization, error) {
	var rows []*orgDatamodel.Organization
	err := r.db.WithContext(ctx).
		Joins("JOIN organization_memberships m ON m.organization_id = organizations.id").
		Where("m.user_id = ? AND m.status = ?", userID, string(permission.MembershipActive)).
		Order("organizations.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*organization.Organization, len(rows))
	for i, row := range rows {
		out[i] = organization.FromDataModel(row)
	}
	return out, nil
}

func (r *OrganizationRepository) Member(ctx context.Context, organizationID, userID int64) (*organization.Member, error) {
	var row orgDatamodel.Membership
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Order("CASE WHEN status = 'active' THEN 0 ELSE 1 END, id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("membership not found")
		}
		return nil, err
	}
	m, err := organization.MemberFromDataModel(&row)
	if err != nil {
		return nil, internal.NewInternalError("stored membership is invalid", err)
	}
	return m, nil
}

func (r *OrganizationRepository) ListMembers(ctx context.Context, organizationID int64, limit, offset int) ([]*organization.Member, error) {
	var rows []*orgDatamodel.Membership
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*organization.Member, 0, len(rows))
	for _, row := range rows {
		m, err := organization.MemberFromDataModel(row)
		if err != nil {
			return nil, internal.NewInternalError("stored membership is invalid", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *OrganizationRepository) AddMember(ctx context.Context, m *organization.Member) error {
	row, err := organization.MemberToDataModel(m)
	if err != nil {
		return internal.NewInternalError("failed to encode membership", err)
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.ErrDuplicate.WithMessage("user is already an active member")
		}
		return err
	}
	m.ID = row.ID
	m.CreatedAt = row.CreatedAt
	m.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *OrganizationRepository) UpdateMember(ctx context.Context, m *organization.Member) error {
	custom, err := organization.EncodeCustom(m.Custom)
	if err != nil {
		return internal.NewInternalError("failed to encode membership", err)
	}
	res := r.db.WithContext(ctx).Model(&orgDatamodel.Membership{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"role":               m.Role.String(),
			"status":             string(m.Status),
			"custom_permissions": custom,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrNotFound.WithMessage("membership not found")
	}
	return nil
}
