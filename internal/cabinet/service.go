package cabinet

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/workflow"
)

// Scope is where a parent space lives.
type Scope struct {
	OrganizationID int64
	SpaceID        int64
}

type Repository interface {
	SpaceScope(ctx context.Context, spaceID int64) (Scope, error)
	Create(ctx context.Context, c *Cabinet) error
	GetByID(ctx context.Context, id int64) (*Cabinet, error)
	ListBySpace(ctx context.Context, spaceID int64, limit, offset int) ([]*Cabinet, error)

	UpsertMemberPermission(ctx context.Context, p *MemberPermission) error
	ListMemberPermissions(ctx context.Context, cabinetID int64) ([]*MemberPermission, error)
	DeleteMemberPermission(ctx context.Context, cabinetID, userID int64) error
}

type Authorizer interface {
	Authorize(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) error
}

type Service struct {
	repo   Repository
	auth   Authorizer
	logger *slog.Logger
}

func NewService(repo Repository, auth Authorizer, logger *slog.Logger) *Service {
	return &Service{repo: repo, auth: auth, logger: logger}
}

func (s *Service) Create(ctx context.Context, actor permission.Principal, dto CreateCabinetDTO) (*Cabinet, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	scope, err := s.repo.SpaceScope(ctx, dto.SpaceID)
	if err != nil {
		return nil, err
	}
	target := permission.Target{Kind: permission.KindCabinet, OrganizationID: scope.OrganizationID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapCreateCabinet); err != nil {
		return nil, err
	}

	c := &Cabinet{
		OrganizationID: scope.OrganizationID,
		SpaceID:        dto.SpaceID,
		Name:           dto.Name,
		Description:    dto.Description,
		Status:         workflow.StatusDraft,
		CreatorID:      actor.ID,
		ApproverID:     dto.ApproverID,
		Version:        1,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("failed to create cabinet", "error", err, "space_id", dto.SpaceID)
		return nil, err
	}
	s.logger.Info("cabinet created", "cabinet_id", c.ID, "space_id", c.SpaceID, "creator_id", actor.ID)
	return c, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Principal, id int64) (*Cabinet, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, c.Target(), permission.CapViewSpace); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ListBySpace(ctx context.Context, actor permission.Principal, spaceID int64, limit, offset int) ([]*Cabinet, error) {
	scope, err := s.repo.SpaceScope(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	target := permission.Target{Kind: permission.KindSpace, ID: spaceID, OrganizationID: scope.OrganizationID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapViewSpace); err != nil {
		return nil, err
	}
	return s.repo.ListBySpace(ctx, spaceID, limit, offset)
}

// SetMemberPermission replaces userID's grants in the cabinet. The row it
// writes overrides org-level answers for cabinet-scoped capabilities.
func (s *Service) SetMemberPermission(ctx context.Context, actor permission.Principal, cabinetID, userID int64, dto MemberPermissionDTO) (*MemberPermission, error) {
	if userID <= 0 {
		return nil, internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeValidationFailed)
	}
	c, err := s.repo.GetByID(ctx, cabinetID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, c.Target(), permission.CapManageCabinet); err != nil {
		return nil, err
	}

	p := &MemberPermission{
		CabinetPermission: permission.CabinetPermission{
			CabinetID:     cabinetID,
			UserID:        userID,
			ReadRecords:   dto.ReadRecords,
			CreateRecords: dto.CreateRecords,
			UpdateRecords: dto.UpdateRecords,
			DeleteRecords: dto.DeleteRecords,
			ManageCabinet: dto.ManageCabinet,
			DownloadFiles: dto.DownloadFiles,
			ExportTables:  dto.ExportTables,
		},
		GrantedBy: actor.ID,
	}
	if err := s.repo.UpsertMemberPermission(ctx, p); err != nil {
		s.logger.Error("failed to store cabinet permission", "error", err, "cabinet_id", cabinetID, "user_id", userID)
		return nil, err
	}
	s.logger.Info("cabinet permission set", "cabinet_id", cabinetID, "user_id", userID, "granted_by", actor.ID)
	return p, nil
}

func (s *Service) ListMemberPermissions(ctx context.Context, actor permission.Principal, cabinetID int64) ([]*MemberPermission, error) {
	c, err := s.repo.GetByID(ctx, cabinetID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, c.Target(), permission.CapManageCabinet); err != nil {
		return nil, err
	}
	return s.repo.ListMemberPermissions(ctx, cabinetID)
}

// RemoveMemberPermission drops the override so org-level rules apply again.
func (s *Service) RemoveMemberPermission(ctx context.Context, actor permission.Principal, cabinetID, userID int64) error {
	c, err := s.repo.GetByID(ctx, cabinetID)
	if err != nil {
		return err
	}
	if err := s.auth.Authorize(ctx, actor, c.Target(), permission.CapManageCabinet); err != nil {
		return err
	}
	return s.repo.DeleteMemberPermission(ctx, cabinetID, userID)
}
