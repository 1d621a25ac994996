package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/auth"
	"github.com/frahmantamala/docflow/internal/core/datamodel/user"
	"github.com/frahmantamala/docflow/internal/permission"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return r.find(ctx, "email = ?", email)
}

func (r *Repository) GetAccount(ctx context.Context, userID int64) (*auth.Account, error) {
	return r.find(ctx, "id = ?", userID)
}

func (r *Repository) find(ctx context.Context, query string, arg interface{}) (*auth.Account, error) {
	var row user.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}
	return &auth.Account{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Type:         permission.PrincipalType(row.Type),
		IsActive:     row.IsActive,
	}, nil
}
