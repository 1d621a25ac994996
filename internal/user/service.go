package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/docflow/internal/permission"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	// Memberships returns every non-historical membership of userID.
	Memberships(ctx context.Context, userID int64) ([]MembershipRow, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Profile returns the caller with the organization-level capabilities each
// membership grants. Suspended memberships are listed with none.
func (s *Service) Profile(ctx context.Context, actor permission.Principal) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Memberships(ctx, actor.ID)
	if err != nil {
		s.logger.Error("failed to load memberships", "error", err, "user_id", actor.ID)
		return nil, err
	}

	p := &Profile{User: *u, Organizations: make([]OrganizationAccess, 0, len(rows))}
	for _, row := range rows {
		m := row.Membership
		caps := permission.Effective(actor, &m, nil)
		if caps == nil {
			caps = []permission.Capability{}
		}
		p.Organizations = append(p.Organizations, OrganizationAccess{
			OrganizationID:   m.OrganizationID,
			OrganizationName: row.OrganizationName,
			Role:             m.Role,
			Status:           m.Status,
			Capabilities:     caps,
		})
	}
	return p, nil
}
