package approval

import (
	"strings"
	"time"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/workflow"
)

type ApproveDTO struct {
	Note string `json:"note,omitempty"`
}

type RejectDTO struct {
	Reason string `json:"reason"`
}

func (d *RejectDTO) Validate() error {
	d.Reason = strings.TrimSpace(d.Reason)
	if d.Reason == "" {
		return internal.ErrReasonRequired
	}
	return nil
}

type ReassignDTO struct {
	NewApproverID int64  `json:"new_approver_id"`
	Reason        string `json:"reason"`
}

func (d *ReassignDTO) Validate() error {
	if d.NewApproverID <= 0 {
		return internal.NewValidationFieldError("new_approver_id", "new_approver_id is required", internal.ErrCodeValidationFailed)
	}
	d.Reason = strings.TrimSpace(d.Reason)
	if d.Reason == "" {
		return internal.ErrReasonRequired
	}
	return nil
}

// ResubmitDTO carries optional replacement content. File replacement goes
// through the kind's upload endpoint.
type ResubmitDTO struct {
	Title      string               `json:"title,omitempty"`
	Body       string               `json:"body,omitempty"`
	Placements []workflow.Placement `json:"placements,omitempty"`
}

func (d *ResubmitDTO) Validate() error {
	for _, p := range d.Placements {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d ResubmitDTO) Content() workflow.Content {
	return workflow.Content{
		Title:      strings.TrimSpace(d.Title),
		Body:       d.Body,
		Placements: d.Placements,
	}
}

type FinalApproveDTO struct {
	Placements []workflow.Placement `json:"placements"`
	Note       string               `json:"note,omitempty"`
}

func (d *FinalApproveDTO) Validate() error {
	for _, p := range d.Placements {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// StateResponse is the workflow view of a resource after an operation.
type StateResponse struct {
	Kind             workflow.Kind       `json:"kind"`
	ID               int64               `json:"id"`
	Status           workflow.Status     `json:"status"`
	Version          int64               `json:"version"`
	CreatorID        int64               `json:"creator_id"`
	ApproverID       int64               `json:"approver_id,omitempty"`
	Approvers        []workflow.Approver `json:"approvers,omitempty"`
	ChainIndex       int                 `json:"chain_index"`
	FinalApproverID  int64               `json:"final_approver_id,omitempty"`
	CurrentReviewer  int64               `json:"current_reviewer_id,omitempty"`
	RejectionReason  *string             `json:"rejection_reason,omitempty"`
	RejectedBy       int64               `json:"rejected_by,omitempty"`
	SubmittedAt      *time.Time          `json:"submitted_at,omitempty"`
	DecidedAt        *time.Time          `json:"decided_at,omitempty"`
	DeletedAt        *time.Time          `json:"deleted_at,omitempty"`
	AvailableActions []workflow.Action   `json:"available_actions"`
}

func NewStateResponse(res workflow.Resource) StateResponse {
	resp := StateResponse{
		Kind:             res.Kind,
		ID:               res.ID,
		Status:           res.Status,
		Version:          res.Version,
		CreatorID:        res.CreatorID,
		ApproverID:       res.ApproverID,
		Approvers:        res.SortedApprovers(),
		ChainIndex:       res.ChainIndex,
		FinalApproverID:  res.FinalApproverID,
		CurrentReviewer:  res.CurrentReviewer(),
		RejectionReason:  res.RejectionReason,
		RejectedBy:       res.RejectedBy,
		SubmittedAt:      res.SubmittedAt,
		DecidedAt:        res.DecidedAt,
		DeletedAt:        res.DeletedAt,
		AvailableActions: workflow.AvailableActions(res.Kind, res.Status, res.Deleted()),
	}
	if resp.AvailableActions == nil {
		resp.AvailableActions = []workflow.Action{}
	}
	return resp
}

type TransitionResponse struct {
	Action   workflow.Action `json:"action"`
	From     workflow.Status `json:"from"`
	To       workflow.Status `json:"to"`
	Resource StateResponse   `json:"resource"`
}

func NewTransitionResponse(out *workflow.Outcome) TransitionResponse {
	return TransitionResponse{
		Action:   out.Action,
		From:     out.From,
		To:       out.To,
		Resource: NewStateResponse(out.Resource),
	}
}
