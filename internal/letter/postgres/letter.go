package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal"
	letterDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/letter"
	spaceDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/space"
	"github.com/frahmantamala/docflow/internal/letter"
)

type LetterRepository struct {
	db *gorm.DB
}

func NewLetterRepository(db *gorm.DB) *LetterRepository {
	return &LetterRepository{db: db}
}

func (r *LetterRepository) SpaceOrganization(ctx context.Context, spaceID int64) (int64, error) {
	var row spaceDatamodel.Space
	err := r.db.WithContext(ctx).Select("id", "organization_id").Where("id = ?", spaceID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, internal.ErrNotFound.WithMessage("space not found")
		}
		return 0, err
	}
	return row.OrganizationID, nil
}

// Create writes the letter and its reviewer chain in one transaction.
func (r *LetterRepository) Create(ctx context.Context, l *letter.Letter) error {
	row, err := letter.ToDataModel(l)
	if err != nil {
		return internal.NewInternalError("failed to encode letter", err)
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
	if err != nil {
		return err
	}
	created, err := letter.FromDataModel(row)
	if err != nil {
		return internal.NewInternalError("failed to decode letter", err)
	}
	*l = *created
	return nil
}

func (r *LetterRepository) GetByID(ctx context.Context, id int64) (*letter.Letter, error) {
	var row letterDatamodel.Letter
	err := r.db.WithContext(ctx).
		Preload("Approvers", func(db *gorm.DB) *gorm.DB { return db.Order("approver_order ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("letter not found")
		}
		return nil, err
	}
	l, err := letter.FromDataModel(&row)
	if err != nil {
		return nil, internal.NewInternalError("failed to decode letter", err)
	}
	return l, nil
}

func (r *LetterRepository) ListBySpace(ctx context.Context, spaceID int64, limit, offset int) ([]*letter.Letter, error) {
	var rows []*letterDatamodel.Letter
	err := r.db.WithContext(ctx).
		Preload("Approvers", func(db *gorm.DB) *gorm.DB { return db.Order("approver_order ASC") }).
		Where("space_id = ?", spaceID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*letter.Letter, 0, len(rows))
	for _, row := range rows {
		l, err := letter.FromDataModel(row)
		if err != nil {
			return nil, internal.NewInternalError("failed to decode letter", err)
		}
		out = append(out, l)
	}
	return out, nil
}
