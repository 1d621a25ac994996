package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal"
	userDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/user"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

func (r *UserRepository) Memberships(ctx context.Context, userID int64) ([]user.MembershipRow, error) {
	var rows []struct {
		OrganizationID    int64
		OrganizationName  string
		Role              string
		Status            string
		CustomPermissions []byte
	}
	err := r.db.WithContext(ctx).
		Table("organization_memberships AS m").
		Select("m.organization_id, o.name AS organization_name, m.role, m.status, m.custom_permissions").
		Joins("JOIN organizations o ON o.id = m.organization_id").
		Where("m.user_id = ? AND m.status IN ?", userID, []string{string(permission.MembershipActive), string(permission.MembershipSuspended)}).
		Order("m.organization_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]user.MembershipRow, 0, len(rows))
	for _, row := range rows {
		role, err := permission.ParseRole(row.Role)
		if err != nil {
			return nil, internal.NewInternalError("stored membership is invalid", err)
		}
		m := permission.Membership{
			OrganizationID: row.OrganizationID,
			UserID:         userID,
			Role:           role,
			Status:         permission.MembershipStatus(row.Status),
		}
		if len(row.CustomPermissions) > 0 && string(row.CustomPermissions) != "null" {
			if err := json.Unmarshal(row.CustomPermissions, &m.Custom); err != nil {
				return nil, internal.NewInternalError("stored membership is invalid", fmt.Errorf("custom permissions: %w", err))
			}
		}
		out = append(out, user.MembershipRow{Membership: m, OrganizationName: row.OrganizationName})
	}
	return out, nil
}
