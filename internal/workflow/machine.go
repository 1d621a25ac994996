package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/permission"
)

// Authorizer is the permission gate the machine consults. permission.Resolver satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) error
	Check(ctx context.Context, principal permission.Principal, target permission.Target, capability permission.Capability) bool
	ActiveMember(ctx context.Context, principal permission.Principal, organizationID int64) error
}

// ManagerResolver names who acts on a single-approver resource that has no approver.
type ManagerResolver interface {
	ManagerFor(ctx context.Context, res Resource) (int64, error)
}

// StaticManager resolves every resource to the same configured manager.
type StaticManager int64

func (m StaticManager) ManagerFor(context.Context, Resource) (int64, error) {
	return int64(m), nil
}

// kindCapabilities are the capabilities that stand in for creator identity.
type kindCapabilities struct {
	manage permission.Capability
	remove permission.Capability
}

var capabilitiesByKind = map[Kind]kindCapabilities{
	KindSpace:   {manage: permission.CapManageSpace, remove: permission.CapDeleteSpace},
	KindCabinet: {manage: permission.CapManageCabinet, remove: permission.CapDeleteCabinet},
	KindRecord:  {manage: permission.CapManageCabinet, remove: permission.CapDeleteRecords},
	KindLetter:  {manage: permission.CapManageSpace, remove: permission.CapManageSpace},
}

const (
	TemplateReviewRequested        = "review_requested"
	TemplateFinalApprovalRequested = "final_approval_requested"
	TemplateApproved               = "resource_approved"
	TemplateRejected               = "resource_rejected"
	TemplateReassignedTo           = "reassigned_to_you"
	TemplateReassignedAway         = "reassigned_away"
	TemplateReviewCancelled        = "review_cancelled"
)

// Notification is a message the caller should send once the transition commits.
type Notification struct {
	UserID   int64          `json:"user_id"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

type Request struct {
	Action        Action
	Actor         permission.Principal
	Reason        string
	Note          string
	NewApproverID int64
	// Content replaces parts of the resource on resubmit.
	Content Content
	// Placements is the final approval payload of a letter.
	Placements []Placement
}

func (r Request) Validate() error {
	if r.Actor.ID == 0 {
		return internal.ErrNotAuthorized.WithMessage("an authenticated actor is required")
	}
	switch r.Action {
	case ActionReject:
		if strings.TrimSpace(r.Reason) == "" {
			return internal.ErrReasonRequired
		}
	case ActionReassign:
		if r.NewApproverID == 0 {
			return internal.NewValidationFieldError("new_approver_id", "new approver is required", internal.ErrCodeValidationFailed)
		}
		if strings.TrimSpace(r.Reason) == "" {
			return internal.ErrReasonRequired
		}
	case ActionResubmit:
		for i, p := range r.Content.Placements {
			if err := p.Validate(); err != nil {
				return internal.NewValidationFieldError(fmt.Sprintf("placements[%d]", i), err.Error(), internal.ErrCodeInvalidPlacement)
			}
		}
	case ActionSubmit, ActionApprove, ActionFinalApprove, ActionCancel, ActionDelete, ActionRestore:
	default:
		return internal.NewValidationFieldError("action", fmt.Sprintf("unknown action %q", r.Action), internal.ErrCodeValidationFailed)
	}
	return nil
}

// Outcome is the result of a legal transition. Previous carries the status and
// version the caller must compare against when persisting Resource.
type Outcome struct {
	Previous      Resource
	Resource      Resource
	Action        Action
	From          Status
	To            Status
	ActorID       int64
	ChainAdvanced bool
	Transition    TransitionRecord
	Reassignment  *ReassignmentRecord
	Notifications []Notification
	// ReplacedFileURL is the blob a resubmit superseded, to be removed after commit.
	ReplacedFileURL string
}

func (o *Outcome) notify(userID int64, template string, data map[string]any) {
	if userID == 0 {
		return
	}
	for _, n := range o.Notifications {
		if n.UserID == userID && n.Template == template {
			return
		}
	}
	o.Notifications = append(o.Notifications, Notification{UserID: userID, Template: template, Data: data})
}

type Machine struct {
	auth     Authorizer
	managers ManagerResolver
	now      func() time.Time
}

type MachineOption func(*Machine)

func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

func NewMachine(auth Authorizer, managers ManagerResolver, opts ...MachineOption) *Machine {
	if managers == nil {
		managers = StaticManager(0)
	}
	m := &Machine{auth: auth, managers: managers, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Transition validates req against current and returns the next state. It
// performs permission lookups but never writes; current is left untouched.
func (m *Machine) Transition(ctx context.Context, current Resource, req Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !current.Kind.HasStatus(current.Status) {
		return nil, internal.NewInternalError(fmt.Sprintf("%s %d has unknown status %q", current.Kind, current.ID, current.Status), nil)
	}

	now := m.now().UTC()
	next := current.Clone()
	out := &Outcome{
		Previous: current,
		Action:   req.Action,
		From:     current.Status,
		ActorID:  req.Actor.ID,
	}

	var err error
	switch req.Action {
	case ActionDelete:
		err = m.remove(ctx, &next, req, now)
	case ActionRestore:
		err = m.restore(ctx, &next, req)
	default:
		if current.Deleted() {
			return nil, internal.ErrInvalidTransition
		}
		if !Allowed(current.Kind, current.Status, req.Action) {
			if current.Status == StatusApproved && reviewActions[req.Action] {
				return nil, internal.ErrAlreadyTerminal
			}
			return nil, internal.ErrInvalidTransition
		}
		err = m.apply(ctx, &next, out, req, now)
		if err == nil && !Permits(current.Kind, current.Status, req.Action, next.Status) {
			err = internal.NewInternalError(fmt.Sprintf("%s %s -> %s is not in the transition table", req.Action, current.Status, next.Status), nil)
		}
	}
	if err != nil {
		return nil, err
	}

	next.Version = current.Version + 1
	out.Resource = next
	out.To = next.Status
	out.Transition = TransitionRecord{
		ResourceKind: current.Kind,
		ResourceID:   current.ID,
		Action:       req.Action,
		FromStatus:   current.Status,
		ToStatus:     next.Status,
		ActorID:      req.Actor.ID,
		Reason:       strings.TrimSpace(req.Reason),
		Note:         req.Note,
		ChainIndex:   next.ChainIndex,
		CreatedAt:    now,
	}
	if out.Reassignment != nil {
		out.Reassignment.CreatedAt = now
	}
	return out, nil
}

func (m *Machine) apply(ctx context.Context, next *Resource, out *Outcome, req Request, now time.Time) error {
	switch req.Action {
	case ActionSubmit:
		return m.submit(ctx, next, out, req, now)
	case ActionApprove:
		if next.Status == StatusPendingFinalApproval {
			return m.finalApprove(ctx, next, out, req, now)
		}
		return m.approve(ctx, next, out, req, now)
	case ActionFinalApprove:
		return m.finalApprove(ctx, next, out, req, now)
	case ActionReject:
		return m.reject(ctx, next, out, req, now)
	case ActionResubmit:
		return m.resubmit(ctx, next, out, req, now)
	case ActionReassign:
		return m.reassign(ctx, next, out, req)
	case ActionCancel:
		return m.cancel(ctx, next, out, req)
	}
	return internal.ErrInvalidTransition
}

func (m *Machine) submit(ctx context.Context, next *Resource, out *Outcome, req Request, now time.Time) error {
	if req.Actor.ID != next.CreatorID {
		if err := m.auth.Authorize(ctx, req.Actor, next.Target(), capabilitiesByKind[next.Kind].manage); err != nil {
			return err
		}
	}
	return m.enterReview(ctx, next, out, now)
}

// enterReview puts a draft or rejected resource in front of its first reviewer.
func (m *Machine) enterReview(ctx context.Context, next *Resource, out *Outcome, now time.Time) error {
	next.Status = PendingStatus(next.Kind)
	data := m.data(*next)
	if next.Kind.Chained() {
		if err := ValidateApprovers(next.Approvers, next.FinalApproverID); err != nil {
			return err
		}
		next.ChainIndex = 0
		next.FinalPlacements = nil
		out.notify(next.CurrentReviewer(), TemplateReviewRequested, data)
	} else {
		approver, err := m.approverOf(ctx, *next)
		if err != nil && !internal.HasType(err, internal.ErrorTypeForbidden) {
			return err
		}
		out.notify(approver, TemplateReviewRequested, data)
	}
	next.SubmittedAt = &now
	next.DecidedAt = nil
	return nil
}

func (m *Machine) approve(ctx context.Context, next *Resource, out *Outcome, req Request, now time.Time) error {
	if next.Status == StatusPending {
		if err := m.requireApprover(ctx, *next, req.Actor); err != nil {
			return err
		}
		next.Status = StatusApproved
		next.DecidedAt = &now
		out.notify(next.CreatorID, TemplateApproved, m.data(*next))
		return nil
	}

	chain, err := NewChain(next.Approvers, next.ChainIndex, next.FinalApproverID)
	if err != nil {
		return internal.NewInternalError("corrupt reviewer chain", err)
	}
	state, err := chain.Advance(req.Actor.ID, VerdictApprove)
	if err != nil {
		return err
	}
	if err := m.auth.ActiveMember(ctx, req.Actor, next.OrganizationID); err != nil {
		return err
	}
	next.Approvers = chain.Approvers()
	next.ChainIndex = state.Index
	out.ChainAdvanced = true
	if state.Exhausted {
		next.Status = StatusPendingFinalApproval
	}
	data := m.data(*next)
	if state.Exhausted {
		out.notify(state.Next, TemplateFinalApprovalRequested, data)
	} else {
		out.notify(state.Next, TemplateReviewRequested, data)
	}
	return nil
}

func (m *Machine) finalApprove(ctx context.Context, next *Resource, out *Outcome, req Request, now time.Time) error {
	if req.Actor.ID != next.FinalApproverID {
		return internal.ErrNotAuthorized.WithMessage("only the final approver can approve this letter")
	}
	if err := m.auth.ActiveMember(ctx, req.Actor, next.OrganizationID); err != nil {
		return err
	}
	if err := ValidateFinalPlacements(next.Content.Placements, req.Placements); err != nil {
		return err
	}
	next.FinalPlacements = append([]Placement(nil), req.Placements...)
	next.Status = StatusApproved
	next.DecidedAt = &now
	out.notify(next.CreatorID, TemplateApproved, m.data(*next))
	return nil
}

func (m *Machine) reject(ctx context.Context, next *Resource, out *Outcome, req Request, now time.Time) error {
	switch next.Status {
	case StatusPending:
		if err := m.requireApprover(ctx, *next, req.Actor); err != nil {
			return err
		}
		next.Status = StatusRejected
	case StatusPendingReview:
		chain, err := NewChain(next.Approvers, next.ChainIndex, next.FinalApproverID)
		if err != nil {
			return internal.NewInternalError("corrupt reviewer chain", err)
		}
		if _, err := chain.Advance(req.Actor.ID, VerdictReject); err != nil {
			return err
		}
		next.Status = StatusRejected
	case StatusPendingFinalApproval:
		if req.Actor.ID != next.FinalApproverID {
			return internal.ErrNotAuthorized.WithMessage("only the final approver can reject this letter")
		}
		next.Status = StatusFinalRejected
	}
	if err := m.auth.ActiveMember(ctx, req.Actor, next.OrganizationID); err != nil {
		return err
	}

	reason := strings.TrimSpace(req.Reason)
	next.RejectionReason = &reason
	next.RejectedBy = req.Actor.ID
	next.DecidedAt = &now

	data := m.data(*next)
	data["reason"] = reason
	out.notify(next.CreatorID, TemplateRejected, data)
	return nil
}

func (m *Machine) resubmit(ctx context.Context, next *Resource, out *Outcome, req Request, now time.Time) error {
	if req.Actor.ID != next.CreatorID {
		return internal.ErrNotAuthorized.WithMessage("only the creator can resubmit")
	}
	if !req.Content.IsZero() {
		replaced := req.Content.merge(next.Content)
		if replaced.FileURL != next.Content.FileURL {
			out.ReplacedFileURL = next.Content.FileURL
		}
		next.Content = replaced
	}
	next.RejectionReason = nil
	next.RejectedBy = 0
	return m.enterReview(ctx, next, out, now)
}

func (m *Machine) reassign(ctx context.Context, next *Resource, out *Outcome, req Request) error {
	from := next.CurrentReviewer()
	if from == 0 && next.Status == StatusPending {
		id, err := m.managers.ManagerFor(ctx, *next)
		if err != nil {
			return internal.NewInternalError("failed to resolve fallback manager", err)
		}
		from = id
	}

	if req.Actor.ID == from {
		if err := m.auth.ActiveMember(ctx, req.Actor, next.OrganizationID); err != nil {
			return err
		}
	} else {
		target := next.authorityTarget()
		if !m.auth.Check(ctx, req.Actor, target, capabilitiesByKind[next.Kind].manage) {
			if err := m.auth.Authorize(ctx, req.Actor, target, permission.CapReassignApprovals); err != nil {
				return err
			}
		}
	}
	if req.NewApproverID == next.CreatorID {
		return internal.NewValidationFieldError("new_approver_id", "the creator cannot review their own resource", internal.ErrCodeValidationFailed)
	}

	position := 0
	if next.Kind.Chained() {
		chain, err := NewChain(next.Approvers, next.ChainIndex, next.FinalApproverID)
		if err != nil {
			return internal.NewInternalError("corrupt reviewer chain", err)
		}
		if position, err = chain.Swap(from, req.NewApproverID); err != nil {
			return err
		}
		next.Approvers = chain.Approvers()
		next.FinalApproverID = chain.FinalApproverID()
	} else {
		if req.NewApproverID == from {
			return internal.NewValidationFieldError("new_approver_id", "new approver must differ from the current one", internal.ErrCodeValidationFailed)
		}
		next.ApproverID = req.NewApproverID
	}

	reason := strings.TrimSpace(req.Reason)
	out.Reassignment = &ReassignmentRecord{
		ResourceKind: next.Kind,
		ResourceID:   next.ID,
		FromUserID:   from,
		ToUserID:     req.NewApproverID,
		ActorID:      req.Actor.ID,
		Reason:       reason,
		Position:     position,
	}

	data := m.data(*next)
	data["reason"] = reason
	template := TemplateReviewRequested
	if next.Status == StatusPendingFinalApproval {
		template = TemplateFinalApprovalRequested
	}
	out.notify(req.NewApproverID, TemplateReassignedTo, data)
	out.notify(req.NewApproverID, template, data)
	out.notify(from, TemplateReassignedAway, data)
	return nil
}

func (m *Machine) cancel(ctx context.Context, next *Resource, out *Outcome, req Request) error {
	if req.Actor.ID != next.CreatorID {
		if err := m.auth.Authorize(ctx, req.Actor, next.Target(), capabilitiesByKind[next.Kind].manage); err != nil {
			return err
		}
	}
	reviewer := next.CurrentReviewer()
	next.Status = StatusDraft
	next.ChainIndex = 0
	next.SubmittedAt = nil
	out.notify(reviewer, TemplateReviewCancelled, m.data(*next))
	return nil
}

// remove soft-deletes. In-flight resources need override rights.
func (m *Machine) remove(ctx context.Context, next *Resource, req Request, now time.Time) error {
	if next.Deleted() {
		return internal.ErrInvalidTransition
	}
	capability := capabilitiesByKind[next.Kind].remove
	if next.Status.InFlight() {
		capability = permission.CapOverridePending
	}
	if err := m.auth.Authorize(ctx, req.Actor, next.Target(), capability); err != nil {
		return err
	}
	next.DeletedAt = &now
	return nil
}

func (m *Machine) restore(ctx context.Context, next *Resource, req Request) error {
	if !next.Deleted() {
		return internal.ErrInvalidTransition
	}
	target := next.Target()
	if next.Status.InFlight() {
		if err := m.auth.Authorize(ctx, req.Actor, target, permission.CapOverridePending); err != nil {
			return err
		}
	} else if !next.Status.Restorable() {
		return internal.ErrInvalidTransition
	}
	if err := m.auth.Authorize(ctx, req.Actor, target, permission.CapRestoreDeleted); err != nil {
		return err
	}
	next.DeletedAt = nil
	return nil
}

// approverOf returns the designated approver or the fallback manager.
func (m *Machine) approverOf(ctx context.Context, res Resource) (int64, error) {
	if res.ApproverID != 0 {
		return res.ApproverID, nil
	}
	id, err := m.managers.ManagerFor(ctx, res)
	if err != nil {
		return 0, internal.NewInternalError("failed to resolve fallback manager", err)
	}
	if id == 0 {
		return 0, internal.ErrNotAuthorized.WithMessage("no approver is designated for this resource")
	}
	return id, nil
}

func (m *Machine) requireApprover(ctx context.Context, res Resource, actor permission.Principal) error {
	approver, err := m.approverOf(ctx, res)
	if err != nil {
		return err
	}
	if actor.ID != approver {
		return internal.ErrNotAuthorized.WithMessage("only the current approver can act on this resource")
	}
	return m.auth.ActiveMember(ctx, actor, res.OrganizationID)
}

func (m *Machine) data(res Resource) map[string]any {
	return map[string]any{
		"kind":        string(res.Kind),
		"resource_id": res.ID,
		"status":      string(res.Status),
		"title":       res.Content.Title,
	}
}
