package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/cabinet"
	cabinetDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/cabinet"
	spaceDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/space"
)

type CabinetRepository struct {
	db *gorm.DB
}

func NewCabinetRepository(db *gorm.DB) *CabinetRepository {
	return &CabinetRepository{db: db}
}

func (r *CabinetRepository) SpaceScope(ctx context.Context, spaceID int64) (cabinet.Scope, error) {
	var row spaceDatamodel.Space
	if err := r.db.WithContext(ctx).Select("id", "organization_id").Where("id = ?", spaceID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cabinet.Scope{}, internal.ErrNotFound.WithMessage("space not found")
		}
		return cabinet.Scope{}, err
	}
	return cabinet.Scope{OrganizationID: row.OrganizationID, SpaceID: row.ID}, nil
}

func (r *CabinetRepository) Create(ctx context.Context, c *cabinet.Cabinet) error {
	row := cabinet.ToDataModel(c)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*c = *cabinet.FromDataModel(row)
	return nil
}

func (r *CabinetRepository) GetByID(ctx context.Context, id int64) (*cabinet.Cabinet, error) {
	var row cabinetDatamodel.Cabinet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("cabinet not found")
		}
		return nil, err
	}
	return cabinet.FromDataModel(&row), nil
}

func (r *CabinetRepository) ListBySpace(ctx context.Context, spaceID int64, limit, offset int) ([]*cabinet.Cabinet, error) {
	var rows []*cabinetDatamodel.Cabinet
	err := r.db.WithContext(ctx).
		Where("space_id = ?", spaceID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*cabinet.Cabinet, len(rows))
	for i, row := range rows {
		out[i] = cabinet.FromDataModel(row)
	}
	return out, nil
}

func (r *CabinetRepository) UpsertMemberPermission(ctx context.Context, p *cabinet.MemberPermission) error {
	row := cabinet.PermissionToDataModel(p)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cabinet_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"read_records", "create_records", "update_records", "delete_records",
			"manage_cabinet", "download_files", "export_tables", "granted_by", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return err
	}
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *CabinetRepository) ListMemberPermissions(ctx context.Context, cabinetID int64) ([]*cabinet.MemberPermission, error) {
	var rows []*cabinetDatamodel.MemberPermission
	if err := r.db.WithContext(ctx).Where("cabinet_id = ?", cabinetID).Order("user_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*cabinet.MemberPermission, len(rows))
	for i, row := range rows {
		out[i] = cabinet.PermissionFromDataModel(row)
	}
	return out, nil
}

func (r *CabinetRepository) DeleteMemberPermission(ctx context.Context, cabinetID, userID int64) error {
	res := r.db.WithContext(ctx).
		Where("cabinet_id = ? AND user_id = ?", cabinetID, userID).
		Delete(&cabinetDatamodel.MemberPermission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrNotFound.WithMessage("cabinet permission not found")
	}
	return nil
}
