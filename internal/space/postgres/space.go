package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal"
	orgDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/organization"
	spaceDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/space"
	userDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/user"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/space"
)

type SpaceRepository struct {
	db *gorm.DB
}

func NewSpaceRepository(db *gorm.DB) *SpaceRepository {
	return &SpaceRepository{db: db}
}

func (r *SpaceRepository) Create(ctx context.Context, s *space.Space) error {
	row := space.ToDataModel(s)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	*s = *space.FromDataModel(row)
	return nil
}

// GetByID returns active spaces only; soft-deleted rows read as not found.
func (r *SpaceRepository) GetByID(ctx context.Context, id int64) (*space.Space, error) {
	var row spaceDatamodel.Space
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("space not found")
		}
		return nil, err
	}
	return space.FromDataModel(&row), nil
}

func (r *SpaceRepository) ListByOrganization(ctx context.Context, organizationID int64, limit, offset int) ([]*space.Space, error) {
	var rows []*spaceDatamodel.Space
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*space.Space, len(rows))
	for i, row := range rows {
		out[i] = space.FromDataModel(row)
	}
	return out, nil
}

func (r *SpaceRepository) CreateInvitation(ctx context.Context, inv *space.Invitation) error {
	row := space.InvitationToDataModel(inv)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return internal.ErrDuplicate.WithMessage("a pending invitation already exists for this email")
		}
		return err
	}
	inv.ID = row.ID
	return nil
}

func (r *SpaceRepository) PendingInvitation(ctx context.Context, spaceID int64, email string) (*space.Invitation, error) {
	var row spaceDatamodel.Invitation
	err := r.db.WithContext(ctx).
		Where("space_id = ? AND email = ? AND status = ?", spaceID, email, string(space.InvitationPending)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return space.InvitationFromDataModel(&row), nil
}

func (r *SpaceRepository) GetInvitationByToken(ctx context.Context, token string) (*space.Invitation, error) {
	var row spaceDatamodel.Invitation
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("invitation not found")
		}
		return nil, err
	}
	return space.InvitationFromDataModel(&row), nil
}

func (r *SpaceRepository) ListInvitations(ctx context.Context, spaceID int64) ([]*space.Invitation, error) {
	var rows []*spaceDatamodel.Invitation
	if err := r.db.WithContext(ctx).Where("space_id = ?", spaceID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*space.Invitation, len(rows))
	for i, row := range rows {
		out[i] = space.InvitationFromDataModel(row)
	}
	return out, nil
}

func (r *SpaceRepository) UpdateInvitationStatus(ctx context.Context, id int64, from, to space.InvitationStatus, at time.Time) error {
	return updateInvitationStatus(r.db.WithContext(ctx), id, from, to, at)
}

func updateInvitationStatus(db *gorm.DB, id int64, from, to space.InvitationStatus, at time.Time) error {
	res := db.Model(&spaceDatamodel.Invitation{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":       string(to),
			"responded_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrConflict
	}
	return nil
}

func (r *SpaceRepository) AcceptInvitation(ctx context.Context, inv *space.Invitation, organizationID, userID int64, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateInvitationStatus(tx, inv.ID, space.InvitationPending, space.InvitationAccepted, at); err != nil {
			return err
		}

		var active int64
		err := tx.Model(&orgDatamodel.Membership{}).
			Where("organization_id = ? AND user_id = ? AND status = ?", organizationID, userID, string(permission.MembershipActive)).
			Count(&active).Error
		if err != nil {
			return err
		}
		if active > 0 {
			return nil
		}

		invitedBy := inv.InvitedBy
		return tx.Create(&orgDatamodel.Membership{
			OrganizationID: organizationID,
			UserID:         userID,
			Role:           inv.Role.String(),
			Status:         string(permission.MembershipActive),
			InvitedBy:      &invitedBy,
		}).Error
	})
}

func (r *SpaceRepository) ExpireInvitations(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&spaceDatamodel.Invitation{}).
		Where("status = ? AND expires_at <= ?", string(space.InvitationPending), now).
		Update("status", string(space.InvitationExpired))
	return res.RowsAffected, res.Error
}

func (r *SpaceRepository) UserEmail(ctx context.Context, userID int64) (string, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).Select("email").Where("id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", internal.ErrNotFound.WithMessage("user not found")
		}
		return "", err
	}
	return row.Email, nil
}
