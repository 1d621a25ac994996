package letter

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/storage"
	"github.com/frahmantamala/docflow/internal/workflow"
)

type Repository interface {
	// SpaceOrganization returns the organization an active space belongs to.
	SpaceOrganization(ctx context.Context, spaceID int64) (int64, error)
	Create(ctx context.Context, l *Letter) error
	GetByID(ctx context.Context, id int64) (*Letter, error)
	ListBySpace(ctx context.Context, spaceID int64, limit, offset int) ([]*Letter, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) error
	Check(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) bool
}

type Service struct {
	repo   Repository
	auth   Authorizer
	blobs  storage.BlobStore
	logger *slog.Logger
}

func NewService(repo Repository, auth Authorizer, blobs storage.BlobStore, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		auth:   auth,
		blobs:  blobs,
		logger: logger,
	}
}

// Create stores a draft letter with its reviewer chain. The creator may not
// review or finally approve their own letter.
func (s *Service) Create(ctx context.Context, actor permission.Principal, dto CreateLetterDTO, file *Upload) (*Letter, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if dto.FinalApproverID == actor.ID {
		return nil, internal.NewValidationFieldError("final_approver_id", "the creator cannot approve their own letter", internal.ErrCodeValidationFailed)
	}
	for _, a := range dto.Approvers {
		if a.UserID == actor.ID {
			return nil, internal.NewValidationFieldError("approvers", "the creator cannot review their own letter", internal.ErrCodeValidationFailed)
		}
	}

	orgID, err := s.repo.SpaceOrganization(ctx, dto.SpaceID)
	if err != nil {
		return nil, err
	}
	target := permission.Target{Kind: permission.KindLetter, OrganizationID: orgID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapCreateLetters); err != nil {
		return nil, err
	}

	l := &Letter{
		OrganizationID:  orgID,
		SpaceID:         dto.SpaceID,
		Subject:         dto.Subject,
		Body:            dto.Body,
		Placements:      dto.Placements,
		Approvers:       dto.Approvers,
		FinalApproverID: dto.FinalApproverID,
		Status:          workflow.StatusDraft,
		CreatorID:       actor.ID,
		Version:         1,
	}
	if file != nil {
		blob, err := s.blobs.Store(ctx, file.Name, file.ContentType, file.Body)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, internal.NewValidationFieldError("file", err.Error(), internal.ErrCodeValidationFailed)
			}
			return nil, internal.NewExternalError("failed to store file", internal.ErrCodeStorageFailed, err)
		}
		l.FileURL = blob.URL
		l.FileName = blob.Name
	}

	if err := s.repo.Create(ctx, l); err != nil {
		s.logger.Error("failed to create letter", "error", err, "space_id", dto.SpaceID)
		if l.FileURL != "" {
			if derr := s.blobs.Delete(ctx, l.FileURL); derr != nil {
				s.logger.Warn("failed to delete orphaned blob", "url", l.FileURL, "error", derr)
			}
		}
		return nil, err
	}

	s.logger.Info("letter created",
		"letter_id", l.ID,
		"space_id", l.SpaceID,
		"creator_id", actor.ID,
		"reviewers", len(l.Approvers),
		"final_approver_id", l.FinalApproverID)
	return l, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Principal, id int64) (*Letter, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, l.Target(), permission.CapReadLetters); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListBySpace(ctx context.Context, actor permission.Principal, spaceID int64, limit, offset int) ([]*Letter, error) {
	orgID, err := s.repo.SpaceOrganization(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	target := permission.Target{Kind: permission.KindSpace, ID: spaceID, OrganizationID: orgID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapReadLetters); err != nil {
		return nil, err
	}
	return s.repo.ListBySpace(ctx, spaceID, limit, offset)
}

// Public returns the anonymous view of a letter. actor may be the zero
// Principal. Letters the caller may not read are reported as not found.
func (s *Service) Public(ctx context.Context, actor permission.Principal, id int64) (*Letter, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.Published() || !s.auth.Check(ctx, actor, l.PublicTarget(), permission.CapReadLetters) {
		return nil, internal.ErrNotFound.WithMessage("letter not found")
	}
	return l, nil
}

// OpenFile streams the letter's file to a reader of the letter. With public
// set, only published letters are served and denial reads as not found.
func (s *Service) OpenFile(ctx context.Context, actor permission.Principal, id int64, public bool) (*Letter, io.ReadCloser, error) {
	var (
		l   *Letter
		err error
	)
	if public {
		l, err = s.Public(ctx, actor, id)
	} else {
		l, err = s.Get(ctx, actor, id)
	}
	if err != nil {
		return nil, nil, err
	}
	if l.FileURL == "" {
		return nil, nil, internal.ErrNotFound.WithMessage("letter has no file")
	}
	rc, err := s.blobs.Open(ctx, l.FileURL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, internal.ErrNotFound.WithMessage("file not found")
		}
		return nil, nil, internal.NewExternalError("failed to open file", internal.ErrCodeStorageFailed, err)
	}
	return l, rc, nil
}
