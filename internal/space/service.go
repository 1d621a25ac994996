package space

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/core/events"
	"github.com/frahmantamala/docflow/internal/permission"
)

type Repository interface {
	Create(ctx context.Context, s *Space) error
	GetByID(ctx context.Context, id int64) (*Space, error)
	ListByOrganization(ctx context.Context, organizationID int64, limit, offset int) ([]*Space, error)

	CreateInvitation(ctx context.Context, inv *Invitation) error
	PendingInvitation(ctx context.Context, spaceID int64, email string) (*Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (*Invitation, error)
	ListInvitations(ctx context.Context, spaceID int64) ([]*Invitation, error)
	// UpdateInvitationStatus moves an invitation out of from; ErrConflict if it already left.
	UpdateInvitationStatus(ctx context.Context, id int64, from, to InvitationStatus, at time.Time) error
	// AcceptInvitation marks the invitation accepted and activates the user's
	// membership in the space's organization in one transaction.
	AcceptInvitation(ctx context.Context, inv *Invitation, organizationID, userID int64, at time.Time) error
	ExpireInvitations(ctx context.Context, now time.Time) (int64, error)
	UserEmail(ctx context.Context, userID int64) (string, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) error
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo          Repository
	auth          Authorizer
	publisher     Publisher
	invitationTTL time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

func NewService(repo Repository, auth Authorizer, publisher Publisher, invitationTTL time.Duration, logger *slog.Logger) *Service {
	if invitationTTL <= 0 {
		invitationTTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:          repo,
		auth:          auth,
		publisher:     publisher,
		invitationTTL: invitationTTL,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Principal, dto CreateSpaceDTO) (*Space, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	target := permission.Target{Kind: permission.KindSpace, OrganizationID: dto.OrganizationID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapCreateSpace); err != nil {
		return nil, err
	}

	sp := NewSpace(dto.OrganizationID, actor.ID, dto)
	if err := s.repo.Create(ctx, sp); err != nil {
		s.logger.Error("failed to create space", "error", err, "organization_id", dto.OrganizationID)
		return nil, err
	}
	s.logger.Info("space created", "space_id", sp.ID, "organization_id", sp.OrganizationID, "creator_id", actor.ID)
	return sp, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Principal, id int64) (*Space, error) {
	sp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, sp.Target(), permission.CapViewSpace); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) List(ctx context.Context, actor permission.Principal, organizationID int64, limit, offset int) ([]*Space, error) {
	target := permission.Target{Kind: permission.KindOrganization, ID: organizationID, OrganizationID: organizationID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapViewSpace); err != nil {
		return nil, err
	}
	return s.repo.ListByOrganization(ctx, organizationID, limit, offset)
}

// Invite creates a pending invitation. A live pending invitation for the same
// address blocks a second one; a stale one is expired first.
func (s *Service) Invite(ctx context.Context, actor permission.Principal, spaceID int64, dto CreateInvitationDTO) (*Invitation, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	sp, err := s.repo.GetByID(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, sp.Target(), permission.CapManageMembers); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	existing, err := s.repo.PendingInvitation(ctx, spaceID, dto.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Expired(now) {
			return nil, internal.ErrDuplicate.WithMessage("a pending invitation already exists for this email")
		}
		if err := s.repo.UpdateInvitationStatus(ctx, existing.ID, InvitationPending, InvitationExpired, now); err != nil && !internal.IsRetryable(err) {
			return nil, err
		}
	}

	inv := &Invitation{
		SpaceID:   spaceID,
		Email:     dto.Email,
		Role:      dto.Role,
		Token:     uuid.NewString(),
		Status:    InvitationPending,
		InvitedBy: actor.ID,
		ExpiresAt: now.Add(s.invitationTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		s.logger.Warn("failed to create invitation", "space_id", spaceID, "error", err)
		return nil, err
	}

	s.logger.Info("invitation created", "space_id", spaceID, "invitation_id", inv.ID, "invited_by", actor.ID)
	if err := s.publisher.Publish(ctx, events.NewInvitationCreatedEvent(spaceID, inv.Email, inv.Token, inv.ExpiresAt)); err != nil {
		s.logger.Error("failed to publish invitation event", "error", err)
	}
	return inv, nil
}

func (s *Service) ListInvitations(ctx context.Context, actor permission.Principal, spaceID int64) ([]*Invitation, error) {
	sp, err := s.repo.GetByID(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, sp.Target(), permission.CapManageMembers); err != nil {
		return nil, err
	}
	return s.repo.ListInvitations(ctx, spaceID)
}

// Respond accepts or declines an invitation on behalf of the invited address.
func (s *Service) Respond(ctx context.Context, actor permission.Principal, dto RespondInvitationDTO) (*Invitation, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	inv, err := s.repo.GetInvitationByToken(ctx, strings.TrimSpace(dto.Token))
	if err != nil {
		return nil, err
	}

	email, err := s.repo.UserEmail(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(email, inv.Email) {
		return nil, internal.ErrNotAuthorized.WithMessage("invitation was issued to a different address")
	}

	now := s.now().UTC()
	if inv.Status != InvitationPending {
		return nil, internal.NewConflictError("invitation was already "+string(inv.Status), internal.ErrCodeInvitationConsumed)
	}
	if inv.Expired(now) {
		if err := s.repo.UpdateInvitationStatus(ctx, inv.ID, InvitationPending, InvitationExpired, now); err != nil && !internal.IsRetryable(err) {
			return nil, err
		}
		return nil, internal.NewStateError("invitation has expired", internal.ErrCodeInvitationExpired)
	}

	if !dto.Accept {
		if err := s.repo.UpdateInvitationStatus(ctx, inv.ID, InvitationPending, InvitationDeclined, now); err != nil {
			return nil, err
		}
		inv.Status = InvitationDeclined
		inv.RespondedAt = &now
		return inv, nil
	}

	sp, err := s.repo.GetByID(ctx, inv.SpaceID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AcceptInvitation(ctx, inv, sp.OrganizationID, actor.ID, now); err != nil {
		return nil, err
	}
	inv.Status = InvitationAccepted
	inv.RespondedAt = &now
	s.logger.Info("invitation accepted", "invitation_id", inv.ID, "space_id", inv.SpaceID, "user_id", actor.ID)
	return inv, nil
}

func (s *Service) Revoke(ctx context.Context, actor permission.Principal, spaceID, invitationID int64) error {
	sp, err := s.repo.GetByID(ctx, spaceID)
	if err != nil {
		return err
	}
	if err := s.auth.Authorize(ctx, actor, sp.Target(), permission.CapManageMembers); err != nil {
		return err
	}
	invitations, err := s.repo.ListInvitations(ctx, spaceID)
	if err != nil {
		return err
	}
	found := false
	for _, inv := range invitations {
		found = found || inv.ID == invitationID
	}
	if !found {
		return internal.ErrNotFound.WithMessage("invitation not found")
	}
	if err := s.repo.UpdateInvitationStatus(ctx, invitationID, InvitationPending, InvitationRevoked, s.now().UTC()); err != nil {
		if internal.IsRetryable(err) {
			return internal.NewConflictError("invitation is no longer pending", internal.ErrCodeInvitationConsumed)
		}
		return err
	}
	return nil
}

// ExpireStale flips every overdue pending invitation to expired.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireInvitations(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to expire invitations", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired stale invitations", "count", n)
	}
	return n, nil
}
