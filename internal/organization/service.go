package organization

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/permission"
)

type Repository interface {
	// Create stores the organization and its owner's active membership together.
	Create(ctx context.Context, o *Organization) (*Member, error)
	GetByID(ctx context.Context, id int64) (*Organization, error)
	ListForUser(ctx context.Context, userID int64) ([]*Organization, error)
	// Member returns the active membership, or the latest one when none is active.
	Member(ctx context.Context, organizationID, userID int64) (*Member, error)
	ListMembers(ctx context.Context, organizationID int64, limit, offset int) ([]*Member, error)
	AddMember(ctx context.Context, m *Member) error
	UpdateMember(ctx context.Context, m *Member) error
}

type Authorizer interface {
	Authorize(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) error
}

// PermissionReader is the resolver's read side, used for the effective view.
type PermissionReader interface {
	CabinetPermission(ctx context.Context, cabinetID, userID int64) (*permission.CabinetPermission, error)
}

type Service struct {
	repo        Repository
	auth        Authorizer
	permissions PermissionReader
	logger      *slog.Logger
}

func NewService(repo Repository, auth Authorizer, permissions PermissionReader, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		auth:        auth,
		permissions: permissions,
		logger:      logger,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Principal, dto CreateOrganizationDTO) (*Organization, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	o := &Organization{Name: dto.Name, OwnerID: actor.ID}
	if _, err := s.repo.Create(ctx, o); err != nil {
		s.logger.Error("failed to create organization", "error", err, "owner_id", actor.ID)
		return nil, err
	}
	s.logger.Info("organization created", "organization_id", o.ID, "owner_id", actor.ID)
	return o, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Principal, id int64) (*Organization, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, o.Target(), permission.CapViewSpace); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, actor permission.Principal) ([]*Organization, error) {
	return s.repo.ListForUser(ctx, actor.ID)
}

func (s *Service) ListMembers(ctx context.Context, actor permission.Principal, organizationID int64, limit, offset int) ([]*Member, error) {
	o, err := s.repo.GetByID(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, o.Target(), permission.CapViewSpace); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, organizationID, limit, offset)
}

func (s *Service) AddMember(ctx context.Context, actor permission.Principal, organizationID int64, dto AddMemberDTO) (*Member, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorizeAdmin(ctx, actor, organizationID, dto.Role); err != nil {
		return nil, err
	}

	existing, err := s.repo.Member(ctx, organizationID, dto.UserID)
	if err != nil && !internal.HasType(err, internal.ErrorTypeNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == permission.MembershipActive {
		return nil, internal.ErrDuplicate.WithMessage("user is already an active member")
	}

	invitedBy := actor.ID
	m := &Member{
		OrganizationID: organizationID,
		UserID:         dto.UserID,
		Role:           dto.Role,
		Status:         permission.MembershipActive,
		InvitedBy:      &invitedBy,
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		s.logger.Error("failed to add member", "error", err, "organization_id", organizationID, "user_id", dto.UserID)
		return nil, err
	}
	s.logger.Info("member added", "organization_id", organizationID, "user_id", dto.UserID, "role", dto.Role, "actor_id", actor.ID)
	return m, nil
}

func (s *Service) ChangeRole(ctx context.Context, actor permission.Principal, organizationID, userID int64, dto ChangeRoleDTO) (*Member, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	m, err := s.mutable(ctx, actor, organizationID, userID, dto.Role)
	if err != nil {
		return nil, err
	}
	if m.Role == permission.RoleOwner {
		if err := s.requireOwner(ctx, actor, organizationID); err != nil {
			return nil, err
		}
	}

	from := m.Role
	m.Role = dto.Role
	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("member role changed", "organization_id", organizationID, "user_id", userID, "from", from, "to", dto.Role, "actor_id", actor.ID)
	return m, nil
}

// SetStatus suspends or reactivates a member. A suspended member keeps the
// row and loses every grant, identity passes included.
func (s *Service) SetStatus(ctx context.Context, actor permission.Principal, organizationID, userID int64, dto SetStatusDTO) (*Member, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if userID == actor.ID {
		return nil, internal.ErrNotAuthorized.WithMessage("members cannot change their own status")
	}
	m, err := s.mutable(ctx, actor, organizationID, userID, 0)
	if err != nil {
		return nil, err
	}
	if m.Role == permission.RoleOwner {
		if err := s.requireOwner(ctx, actor, organizationID); err != nil {
			return nil, err
		}
	}

	m.Status = dto.Status
	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("member status changed", "organization_id", organizationID, "user_id", userID, "status", dto.Status, "actor_id", actor.ID)
	return m, nil
}

// SetCustomPermissions replaces the member's override set. Overrides of
// manage_organization are reserved to owners.
func (s *Service) SetCustomPermissions(ctx context.Context, actor permission.Principal, organizationID, userID int64, custom permission.CustomPermissions) (*Member, error) {
	m, err := s.mutable(ctx, actor, organizationID, userID, 0)
	if err != nil {
		return nil, err
	}
	if _, ok := custom.Lookup(permission.CapManageOrganization); ok {
		if err := s.requireOwner(ctx, actor, organizationID); err != nil {
			return nil, err
		}
	}

	m.Custom = custom
	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("member permissions changed", "organization_id", organizationID, "user_id", userID, "actor_id", actor.ID)
	return m, nil
}

// Effective lists what userID may do in the organization, and inside a
// cabinet when cabinetID is set. Members may read their own; seeing anyone
// else's needs manage_members.
func (s *Service) Effective(ctx context.Context, actor permission.Principal, organizationID, userID, cabinetID int64) (*Capabilities, error) {
	if userID != actor.ID {
		target := permission.Target{Kind: permission.KindOrganization, ID: organizationID, OrganizationID: organizationID}
		if err := s.auth.Authorize(ctx, actor, target, permission.CapManageMembers); err != nil {
			return nil, err
		}
	}
	m, err := s.repo.Member(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}

	var cabinet *permission.CabinetPermission
	if cabinetID != 0 {
		cabinet, err = s.permissions.CabinetPermission(ctx, cabinetID, userID)
		if err != nil {
			return nil, internal.NewInternalError("failed to load cabinet permission", err)
		}
	}

	caps := permission.Effective(permission.Principal{ID: userID, Type: permission.PrincipalUser}, m.Membership(), cabinet)
	if caps == nil {
		caps = []permission.Capability{}
	}
	return &Capabilities{
		OrganizationID: organizationID,
		UserID:         userID,
		CabinetID:      cabinetID,
		Role:           m.Role,
		Status:         m.Status,
		Capabilities:   caps,
	}, nil
}

// authorizeAdmin requires manage_members, and ownership when granting owner.
func (s *Service) authorizeAdmin(ctx context.Context, actor permission.Principal, organizationID int64, granting permission.Role) error {
	o, err := s.repo.GetByID(ctx, organizationID)
	if err != nil {
		return err
	}
	if err := s.auth.Authorize(ctx, actor, o.Target(), permission.CapManageMembers); err != nil {
		return err
	}
	if granting == permission.RoleOwner {
		return s.requireOwner(ctx, actor, organizationID)
	}
	return nil
}

// mutable loads a member the actor may administer.
func (s *Service) mutable(ctx context.Context, actor permission.Principal, organizationID, userID int64, granting permission.Role) (*Member, error) {
	if err := s.authorizeAdmin(ctx, actor, organizationID, granting); err != nil {
		return nil, err
	}
	return s.repo.Member(ctx, organizationID, userID)
}

func (s *Service) requireOwner(ctx context.Context, actor permission.Principal, organizationID int64) error {
	m, err := s.repo.Member(ctx, organizationID, actor.ID)
	if err != nil && !internal.HasType(err, internal.ErrorTypeNotFound) {
		return err
	}
	if m == nil || m.Status != permission.MembershipActive || m.Role != permission.RoleOwner {
		return internal.ErrNotAuthorized.WithMessage("only an owner can do this")
	}
	return nil
}
