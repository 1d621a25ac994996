package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal"
	cabinetDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/cabinet"
	recordDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/record"
	"github.com/frahmantamala/docflow/internal/record"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) CabinetScope(ctx context.Context, cabinetID int64) (record.Scope, error) {
	var row cabinetDatamodel.Cabinet
	err := r.db.WithContext(ctx).
		Select("id", "organization_id", "space_id").
		Where("id = ?", cabinetID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return record.Scope{}, internal.ErrNotFound.WithMessage("cabinet not found")
		}
		return record.Scope{}, err
	}
	return record.Scope{OrganizationID: row.OrganizationID, SpaceID: row.SpaceID, CabinetID: row.ID}, nil
}

func (r *RecordRepository) Create(ctx context.Context, rec *record.Record) error {
	row := record.ToDataModel(rec)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*rec = *record.FromDataModel(row)
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*record.Record, error) {
	var row recordDatamodel.Record
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("record not found")
		}
		return nil, err
	}
	return record.FromDataModel(&row), nil
}

func (r *RecordRepository) ListByCabinet(ctx context.Context, cabinetID int64, limit, offset int) ([]*record.Record, error) {
	var rows []*recordDatamodel.Record
	err := r.db.WithContext(ctx).
		Where("cabinet_id = ?", cabinetID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*record.Record, len(rows))
	for i, row := range rows {
		out[i] = record.FromDataModel(row)
	}
	return out, nil
}

func (r *RecordRepository) UpdateFileMeta(ctx context.Context, id int64, fileURL, contentType string, size int64) error {
	return r.db.WithContext(ctx).Model(&recordDatamodel.Record{}).
		Where("id = ? AND file_url = ?", id, fileURL).
		Updates(map[string]interface{}{
			"content_type": contentType,
			"size":         size,
		}).Error
}
