package record

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

// Scope is where a parent cabinet lives.
type Scope struct {
	OrganizationID int64
	SpaceID        int64
	CabinetID      int64
}

type Repository interface {
	CabinetScope(ctx context.Context, cabinetID int64) (Scope, error)
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id int64) (*Record, error)
	ListByCabinet(ctx context.Context, cabinetID int64, limit, offset int) ([]*Record, error)
	// UpdateFileMeta refreshes content type and size if fileURL is still current.
	UpdateFileMeta(ctx context.Context, id int64, fileURL, contentType string, size int64) error
}

type Authorizer interface {
	Authorize(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) error
}

// Resubmitter runs the workflow resubmit that swaps the file in.
type Resubmitter interface {
	Resubmit(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, replacement workflow.Content) (*workflow.Outcome, error)
}

type Service struct {
	repo      Repository
	auth      Authorizer
	blobs     storage.BlobStore
	approvals Resubmitter
	logger    *slog.Logger
}

func NewService(repo Repository, auth Authorizer, blobs storage.BlobStore, approvals Resubmitter, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		auth:      auth,
		blobs:     blobs,
		approvals: approvals,
		logger:    logger,
	}
}

// Create stores the optional file first and the row second. A failed insert
// removes the orphaned blob.
func (s *Service) Create(ctx context.Context, actor permission.Principal, dto CreateRecordDTO, file *Upload) (*Record, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	scope, err := s.repo.CabinetScope(ctx, dto.CabinetID)
	if err != nil {
		return nil, err
	}
	target := permission.Target{Kind: permission.KindRecord, OrganizationID: scope.OrganizationID, CabinetID: scope.CabinetID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapCreateRecords); err != nil {
		return nil, err
	}

	rec := &Record{
		OrganizationID: scope.OrganizationID,
		SpaceID:        scope.SpaceID,
		CabinetID:      scope.CabinetID,
		Title:          dto.Title,
		Description:    dto.Description,
		Status:         workflow.StatusDraft,
		CreatorID:      actor.ID,
		ApproverID:     dto.ApproverID,
		Version:        1,
	}
	if file != nil {
		blob, err := s.store(ctx, file)
		if err != nil {
			return nil, err
		}
		rec.FileURL = blob.URL
		rec.FileName = blob.Name
		rec.ContentType = blob.ContentType
		rec.Size = blob.Size
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		s.logger.Error("failed to create record", "error", err, "cabinet_id", dto.CabinetID)
		s.discard(ctx, rec.FileURL)
		return nil, err
	}
	s.logger.Info("record created", "record_id", rec.ID, "cabinet_id", rec.CabinetID, "creator_id", actor.ID, "has_file", rec.FileURL != "")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Principal, id int64) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, rec.Target(), permission.CapReadRecords); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ListByCabinet(ctx context.Context, actor permission.Principal, cabinetID int64, limit, offset int) ([]*Record, error) {
	scope, err := s.repo.CabinetScope(ctx, cabinetID)
	if err != nil {
		return nil, err
	}
	target := permission.Target{Kind: permission.KindCabinet, ID: cabinetID, OrganizationID: scope.OrganizationID, CabinetID: cabinetID}
	if err := s.auth.Authorize(ctx, actor, target, permission.CapReadRecords); err != nil {
		return nil, err
	}
	return s.repo.ListByCabinet(ctx, cabinetID, limit, offset)
}

// OpenFile streams the record's file. The caller closes the reader.
func (s *Service) OpenFile(ctx context.Context, actor permission.Principal, id int64) (*Record, io.ReadCloser, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.auth.Authorize(ctx, actor, rec.Target(), permission.CapDownloadFiles); err != nil {
		return nil, nil, err
	}
	if rec.FileURL == "" {
		return nil, nil, internal.ErrNotFound.WithMessage("record has no file")
	}
	rc, err := s.blobs.Open(ctx, rec.FileURL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, internal.ErrNotFound.WithMessage("file not found")
		}
		return nil, nil, internal.NewExternalError("failed to open file", internal.ErrCodeStorageFailed, err)
	}
	return rec, rc, nil
}

// ResubmitWithFile uploads a replacement and resubmits the rejected record
// with it. The old blob goes once the swap has committed; a refused
// resubmit deletes the new one instead.
func (s *Service) ResubmitWithFile(ctx context.Context, actor permission.Principal, id int64, file Upload) (*workflow.Outcome, error) {
	blob, err := s.store(ctx, &file)
	if err != nil {
		return nil, err
	}

	out, err := s.approvals.Resubmit(ctx, workflow.KindRecord, id, actor, workflow.Content{FileURL: blob.URL, FileName: blob.Name})
	if err != nil {
		s.discard(ctx, blob.URL)
		return nil, err
	}
	if err := s.repo.UpdateFileMeta(ctx, id, blob.URL, blob.ContentType, blob.Size); err != nil {
		s.logger.Warn("failed to refresh file metadata", "record_id", id, "error", err)
	}
	return out, nil
}

func (s *Service) store(ctx context.Context, file *Upload) (storage.Blob, error) {
	blob, err := s.blobs.Store(ctx, file.Name, file.ContentType, file.Body)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return storage.Blob{}, internal.NewValidationFieldError("file", err.Error(), internal.ErrCodeValidationFailed)
		}
		s.logger.Error("failed to store upload", "error", err, "name", file.Name)
		return storage.Blob{}, internal.NewExternalError("failed to store file", internal.ErrCodeStorageFailed, err)
	}
	return blob, nil
}

func (s *Service) discard(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.blobs.Delete(ctx, url); err != nil {
		s.logger.Warn("failed to delete orphaned blob", "url", url, "error", err)
	}
}
