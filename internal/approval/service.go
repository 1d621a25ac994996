package approval

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/core/events"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/workflow"
	"github.com/frahmantamala/docflow/pkg/logger"
)

// Store is the persistence the service drives. workflow/postgres.Store satisfies it.
type Store interface {
	Load(ctx context.Context, kind workflow.Kind, id int64) (workflow.Resource, error)
	Apply(ctx context.Context, out *workflow.Outcome) error
	Purge(ctx context.Context, kind workflow.Kind, id, version int64) error
	History(ctx context.Context, kind workflow.Kind, id int64) ([]workflow.ReassignmentRecord, error)
	Transitions(ctx context.Context, kind workflow.Kind, id int64) ([]workflow.TransitionRecord, error)
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// BlobRemover deletes files that a transition made unreachable.
type BlobRemover interface {
	Delete(ctx context.Context, url string) error
}

// readCapability gates the audit views of each kind.
var readCapability = map[workflow.Kind]permission.Capability{
	workflow.KindSpace:   permission.CapViewSpace,
	workflow.KindCabinet: permission.CapViewSpace,
	workflow.KindRecord:  permission.CapReadRecords,
	workflow.KindLetter:  permission.CapReadLetters,
}

type Service struct {
	store     Store
	machine   *workflow.Machine
	auth      workflow.Authorizer
	publisher Publisher
	blobs     BlobRemover
	logger    *slog.Logger
}

func NewService(store Store, machine *workflow.Machine, auth workflow.Authorizer, publisher Publisher, blobs BlobRemover, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		machine:   machine,
		auth:      auth,
		publisher: publisher,
		blobs:     blobs,
		logger:    logger,
	}
}

// Transition loads the resource, runs the state machine and persists the
// outcome with compare-and-set. Events go out only after the commit.
func (s *Service) Transition(ctx context.Context, kind workflow.Kind, id int64, req workflow.Request) (*workflow.Outcome, error) {
	log := logger.From(ctx)
	if log == nil {
		log = s.logger
	}
	log = log.With("kind", kind, "resource_id", id, "action", req.Action, "actor_id", req.Actor.ID)

	current, err := s.store.Load(ctx, kind, id)
	if err != nil {
		log.Warn("failed to load resource", "error", err)
		return nil, err
	}

	out, err := s.machine.Transition(ctx, current, req)
	if err != nil {
		log.Warn("transition refused", "status", current.Status, "error", err)
		return nil, err
	}

	if err := s.store.Apply(ctx, out); err != nil {
		if internal.IsRetryable(err) {
			log.Warn("transition lost a concurrent update", "expected_version", current.Version)
		} else {
			log.Error("failed to persist transition", "error", err)
		}
		return nil, err
	}

	log.Info("transition applied",
		"from", out.From,
		"to", out.To,
		"version", out.Resource.Version,
		"chain_index", out.Resource.ChainIndex)

	if err := s.publisher.Publish(ctx, events.NewTransitionEvent(out)); err != nil {
		log.Error("failed to publish transition event", "error", err)
	}
	if out.ReplacedFileURL != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, out.ReplacedFileURL); err != nil {
			log.Warn("failed to delete superseded blob", "url", out.ReplacedFileURL, "error", err)
		}
	}
	return out, nil
}

func (s *Service) SubmitForReview(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionSubmit, Actor: actor})
}

func (s *Service) Approve(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, note string) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionApprove, Actor: actor, Note: note})
}

func (s *Service) Reject(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, reason string) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionReject, Actor: actor, Reason: reason})
}

func (s *Service) Reassign(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, newApproverID int64, reason string) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionReassign, Actor: actor, NewApproverID: newApproverID, Reason: reason})
}

func (s *Service) Resubmit(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, replacement workflow.Content) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionResubmit, Actor: actor, Content: replacement})
}

func (s *Service) FinalApprove(ctx context.Context, id int64, actor permission.Principal, placements []workflow.Placement, note string) (*workflow.Outcome, error) {
	return s.Transition(ctx, workflow.KindLetter, id, workflow.Request{Action: workflow.ActionFinalApprove, Actor: actor, Placements: placements, Note: note})
}

func (s *Service) Cancel(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionCancel, Actor: actor})
}

func (s *Service) Delete(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionDelete, Actor: actor})
}

func (s *Service) Restore(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error) {
	return s.Transition(ctx, kind, id, workflow.Request{Action: workflow.ActionRestore, Actor: actor})
}

// Purge removes a soft-deleted resource for good. Its audit trail stays.
func (s *Service) Purge(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) error {
	res, err := s.store.Load(ctx, kind, id)
	if err != nil {
		return err
	}
	if !res.Deleted() {
		return internal.ErrInvalidTransition.WithMessage("only deleted resources can be purged")
	}
	if err := s.auth.Authorize(ctx, actor, res.Target(), permission.CapPurgeDeleted); err != nil {
		return err
	}
	if err := s.store.Purge(ctx, kind, id, res.Version); err != nil {
		s.logger.Error("failed to purge resource", "kind", kind, "resource_id", id, "error", err)
		return err
	}

	s.logger.Info("resource purged", "kind", kind, "resource_id", id, "actor_id", actor.ID)
	if err := s.publisher.Publish(ctx, events.NewPurgedEvent(kind, id, actor.ID, res.Content.FileURL)); err != nil {
		s.logger.Error("failed to publish purge event", "error", err)
	}
	if res.Content.FileURL != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, res.Content.FileURL); err != nil {
			s.logger.Warn("failed to delete purged blob", "url", res.Content.FileURL, "error", err)
		}
	}
	return nil
}

// Get returns the workflow view of a resource the actor may read.
func (s *Service) Get(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (workflow.Resource, error) {
	res, err := s.store.Load(ctx, kind, id)
	if err != nil {
		return workflow.Resource{}, err
	}
	if err := s.auth.Authorize(ctx, actor, res.Target(), readCapability[kind]); err != nil {
		return workflow.Resource{}, err
	}
	return res, nil
}

func (s *Service) History(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) ([]workflow.ReassignmentRecord, error) {
	if _, err := s.Get(ctx, kind, id, actor); err != nil {
		return nil, err
	}
	return s.store.History(ctx, kind, id)
}

func (s *Service) Transitions(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) ([]workflow.TransitionRecord, error) {
	if _, err := s.Get(ctx, kind, id, actor); err != nil {
		return nil, err
	}
	return s.store.Transitions(ctx, kind, id)
}
