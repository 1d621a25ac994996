package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/frahmantamala/docflow/internal"
	workflowDatamodel "github.com/frahmantamala/docflow/internal/core/datamodel/workflow"
	"github.com/frahmantamala/docflow/internal/workflow"
)

// table maps an approvable kind onto its row layout.
type table struct {
	name      string
	title     string
	body      string
	spaceID   string
	cabinetID string
	files     bool
	chained   bool
}

var tables = map[workflow.Kind]table{
	workflow.KindSpace:   {name: "spaces", title: "name", body: "description", spaceID: "id", cabinetID: "0"},
	workflow.KindCabinet: {name: "cabinets", title: "name", body: "description", spaceID: "space_id", cabinetID: "id"},
	workflow.KindRecord:  {name: "records", title: "title", body: "description", spaceID: "space_id", cabinetID: "cabinet_id", files: true},
	workflow.KindLetter:  {name: "letters", title: "subject", body: "body", spaceID: "space_id", cabinetID: "0", files: true, chained: true},
}

func lookup(kind workflow.Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, internal.NewValidationFieldError("kind", fmt.Sprintf("unknown resource kind %q", kind), internal.ErrCodeValidationFailed)
	}
	return t, nil
}

func (t table) selectQuery() string {
	cols := []string{
		"id",
		"organization_id",
		t.spaceID + " AS space_id",
		t.cabinetID + " AS cabinet_id",
		"status", "creator_id", "approver_id", "rejection_reason", "rejected_by",
		"submitted_at", "decided_at", "version", "deleted_at",
		t.title + " AS title",
		t.body + " AS body",
	}
	if t.files {
		cols = append(cols, "file_url", "file_name")
	} else {
		cols = append(cols, "'' AS file_url", "'' AS file_name")
	}
	if t.chained {
		cols = append(cols, "placements", "final_placements", "current_approver_index", "final_approver_id")
	} else {
		cols = append(cols, "NULL AS placements", "NULL AS final_placements", "0 AS current_approver_index", "0 AS final_approver_id")
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(cols, ", "), t.name)
}

type resourceRow struct {
	ID                   int64
	OrganizationID       int64
	SpaceID              int64
	CabinetID            int64
	Status               string
	CreatorID            int64
	ApproverID           *int64
	RejectionReason      *string
	RejectedBy           *int64
	SubmittedAt          *time.Time
	DecidedAt            *time.Time
	Version              int64
	DeletedAt            *time.Time
	Title                string
	Body                 string
	FileURL              string
	FileName             string
	Placements           []byte
	FinalPlacements      []byte
	CurrentApproverIndex int
	FinalApproverID      int64
}

// Store persists workflow transitions with compare-and-set on (status, version).
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Load returns the resource including soft-deleted ones.
func (s *Store) Load(ctx context.Context, kind workflow.Kind, id int64) (workflow.Resource, error) {
	return load(s.db.WithContext(ctx), kind, id)
}

func load(db *gorm.DB, kind workflow.Kind, id int64) (workflow.Resource, error) {
	t, err := lookup(kind)
	if err != nil {
		return workflow.Resource{}, err
	}

	var row resourceRow
	res := db.Raw(t.selectQuery(), id).Scan(&row)
	if res.Error != nil {
		return workflow.Resource{}, internal.NewInternalError(fmt.Sprintf("failed to load %s", kind), res.Error)
	}
	if res.RowsAffected == 0 {
		return workflow.Resource{}, internal.ErrNotFound.WithMessage(fmt.Sprintf("%s %d not found", kind, id))
	}

	status, err := workflow.ParseStatus(kind, row.Status)
	if err != nil {
		return workflow.Resource{}, internal.NewInternalError("stored status is invalid", err)
	}

	r := workflow.Resource{
		Kind:            kind,
		ID:              row.ID,
		OrganizationID:  row.OrganizationID,
		SpaceID:         row.SpaceID,
		CabinetID:       row.CabinetID,
		Status:          status,
		CreatorID:       row.CreatorID,
		ApproverID:      deref(row.ApproverID),
		ChainIndex:      row.CurrentApproverIndex,
		FinalApproverID: row.FinalApproverID,
		RejectionReason: row.RejectionReason,
		RejectedBy:      deref(row.RejectedBy),
		Content: workflow.Content{
			Title:    row.Title,
			Body:     row.Body,
			FileURL:  row.FileURL,
			FileName: row.FileName,
		},
		SubmittedAt: row.SubmittedAt,
		DecidedAt:   row.DecidedAt,
		DeletedAt:   row.DeletedAt,
		Version:     row.Version,
	}
	if err := decodePlacements(row.Placements, &r.Content.Placements); err != nil {
		return workflow.Resource{}, internal.NewInternalError("stored placements are invalid", err)
	}
	if err := decodePlacements(row.FinalPlacements, &r.FinalPlacements); err != nil {
		return workflow.Resource{}, internal.NewInternalError("stored placements are invalid", err)
	}

	if t.chained {
		var approvers []struct {
			UserID        int64
			ApproverOrder int
		}
		err := db.Table("letter_approvers").
			Select("user_id, approver_order").
			Where("letter_id = ?", id).
			Order("approver_order ASC").
			Scan(&approvers).Error
		if err != nil {
			return workflow.Resource{}, internal.NewInternalError("failed to load reviewer chain", err)
		}
		for _, a := range approvers {
			r.Approvers = append(r.Approvers, workflow.Approver{UserID: a.UserID, Order: a.ApproverOrder})
		}
	}
	return r, nil
}

// Apply writes an outcome atomically: the resource row guarded by the
// previous status and version, the reviewer slot, the reassignment record and
// the transition log. A lost race returns internal.ErrConflict.
func (s *Store) Apply(ctx context.Context, out *workflow.Outcome) error {
	prev, next := out.Previous, out.Resource
	t, err := lookup(next.Kind)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":           string(next.Status),
			"version":          next.Version,
			"approver_id":      nullable(next.ApproverID),
			"rejection_reason": next.RejectionReason,
			"rejected_by":      nullable(next.RejectedBy),
			"submitted_at":     next.SubmittedAt,
			"decided_at":       next.DecidedAt,
			"deleted_at":       next.DeletedAt,
			"updated_at":       out.Transition.CreatedAt,
		}
		if t.chained {
			final, err := encodePlacements(next.FinalPlacements)
			if err != nil {
				return err
			}
			updates["current_approver_index"] = next.ChainIndex
			updates["final_approver_id"] = next.FinalApproverID
			updates["final_placements"] = final
		}
		if out.Action == workflow.ActionResubmit {
			updates[t.title] = next.Content.Title
			updates[t.body] = next.Content.Body
			if t.files {
				updates["file_url"] = next.Content.FileURL
				updates["file_name"] = next.Content.FileName
			}
			if t.chained {
				placements, err := encodePlacements(next.Content.Placements)
				if err != nil {
					return err
				}
				updates["placements"] = placements
			}
		}

		res := tx.Table(t.name).
			Where("id = ? AND status = ? AND version = ?", prev.ID, string(prev.Status), prev.Version).
			Updates(updates)
		if res.Error != nil {
			return internal.NewInternalError("failed to persist transition", res.Error)
		}
		if res.RowsAffected == 0 {
			return internal.ErrConflict
		}

		if r := out.Reassignment; r != nil {
			if t.chained && r.Position >= 0 {
				if err := swapApprover(tx, next, r.Position); err != nil {
					return err
				}
			}
			row := workflowDatamodel.Reassignment{
				ResourceKind: string(r.ResourceKind),
				ResourceID:   r.ResourceID,
				FromUserID:   r.FromUserID,
				ToUserID:     r.ToUserID,
				ActorID:      r.ActorID,
				Reason:       r.Reason,
				Position:     r.Position,
				CreatedAt:    r.CreatedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return internal.NewInternalError("failed to record reassignment", err)
			}
			r.ID = row.ID
		}

		log := workflowDatamodel.TransitionLog{
			ResourceKind: string(out.Transition.ResourceKind),
			ResourceID:   out.Transition.ResourceID,
			Action:       string(out.Transition.Action),
			FromStatus:   string(out.Transition.FromStatus),
			ToStatus:     string(out.Transition.ToStatus),
			ActorID:      out.Transition.ActorID,
			Reason:       optional(out.Transition.Reason),
			Note:         optional(out.Transition.Note),
			ChainIndex:   out.Transition.ChainIndex,
			CreatedAt:    out.Transition.CreatedAt,
		}
		if err := tx.Create(&log).Error; err != nil {
			return internal.NewInternalError("failed to record transition", err)
		}
		out.Transition.ID = log.ID
		return nil
	})
}

func swapApprover(tx *gorm.DB, next workflow.Resource, position int) error {
	approvers := next.SortedApprovers()
	if position >= len(approvers) {
		return internal.NewInternalError(fmt.Sprintf("reviewer position %d out of range", position), nil)
	}
	slot := approvers[position]
	res := tx.Table("letter_approvers").
		Where("letter_id = ? AND approver_order = ?", next.ID, slot.Order).
		Updates(map[string]any{"user_id": slot.UserID, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return internal.NewInternalError("failed to swap reviewer", res.Error)
	}
	if res.RowsAffected == 0 {
		return internal.ErrConflict
	}
	return nil
}

// Purge hard-deletes a soft-deleted resource. Audit rows are kept.
func (s *Store) Purge(ctx context.Context, kind workflow.Kind, id, version int64) error {
	t, err := lookup(kind)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ? AND version = ? AND deleted_at IS NOT NULL", t.name), id, version)
		if res.Error != nil {
			return internal.NewInternalError(fmt.Sprintf("failed to purge %s", kind), res.Error)
		}
		if res.RowsAffected == 0 {
			return internal.ErrConflict
		}
		if t.chained {
			if err := tx.Exec("DELETE FROM letter_approvers WHERE letter_id = ?", id).Error; err != nil {
				return internal.NewInternalError("failed to purge reviewer chain", err)
			}
		}
		return nil
	})
}

// History returns reassignment records in the order they were written.
func (s *Store) History(ctx context.Context, kind workflow.Kind, id int64) ([]workflow.ReassignmentRecord, error) {
	var rows []workflowDatamodel.Reassignment
	err := s.db.WithContext(ctx).
		Where("resource_kind = ? AND resource_id = ?", string(kind), id).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, internal.NewInternalError("failed to load reassignment history", err)
	}

	out := make([]workflow.ReassignmentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, workflow.ReassignmentRecord{
			ID:           r.ID,
			ResourceKind: workflow.Kind(r.ResourceKind),
			ResourceID:   r.ResourceID,
			FromUserID:   r.FromUserID,
			ToUserID:     r.ToUserID,
			ActorID:      r.ActorID,
			Reason:       r.Reason,
			Position:     r.Position,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) Transitions(ctx context.Context, kind workflow.Kind, id int64) ([]workflow.TransitionRecord, error) {
	var rows []workflowDatamodel.TransitionLog
	err := s.db.WithContext(ctx).
		Where("resource_kind = ? AND resource_id = ?", string(kind), id).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, internal.NewInternalError("failed to load transitions", err)
	}

	out := make([]workflow.TransitionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, workflow.TransitionRecord{
			ID:           r.ID,
			ResourceKind: workflow.Kind(r.ResourceKind),
			ResourceID:   r.ResourceID,
			Action:       workflow.Action(r.Action),
			FromStatus:   workflow.Status(r.FromStatus),
			ToStatus:     workflow.Status(r.ToStatus),
			ActorID:      r.ActorID,
			Reason:       deref(r.Reason),
			Note:         deref(r.Note),
			ChainIndex:   r.ChainIndex,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

func encodePlacements(p []workflow.Placement) (datatypes.JSON, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode placements: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decodePlacements(b []byte, dst *[]workflow.Placement) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return errors.Join(errors.New("decode placements"), err)
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func nullable(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
