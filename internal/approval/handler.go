package approval

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/docflow/internal/auth"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/transport"
	"github.com/frahmantamala/docflow/internal/workflow"
	"github.com/frahmantamala/docflow/pkg/logger"
)

type ServiceAPI interface {
	Get(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (workflow.Resource, error)
	SubmitForReview(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error)
	Approve(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, note string) (*workflow.Outcome, error)
	Reject(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, reason string) (*workflow.Outcome, error)
	Reassign(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, newApproverID int64, reason string) (*workflow.Outcome, error)
	Resubmit(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal, replacement workflow.Content) (*workflow.Outcome, error)
	FinalApprove(ctx context.Context, id int64, actor permission.Principal, placements []workflow.Placement, note string) (*workflow.Outcome, error)
	Cancel(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error)
	Delete(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error)
	Restore(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) (*workflow.Outcome, error)
	Purge(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) error
	History(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) ([]workflow.ReassignmentRecord, error)
	Transitions(ctx context.Context, kind workflow.Kind, id int64, actor permission.Principal) ([]workflow.TransitionRecord, error)
}

// Handler exposes the workflow operations of one resource kind. It is mounted
// under that kind's route prefix next to the kind's own CRUD handler.
type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Kind    workflow.Kind
}

func NewHandler(kind workflow.Kind, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		Kind:        kind,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}/workflow", h.State)
	r.Post("/{id}/submit", h.Submit)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)
	r.Post("/{id}/reassign", h.Reassign)
	r.Post("/{id}/resubmit", h.Resubmit)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/restore", h.Restore)
	r.Delete("/{id}", h.Delete)
	r.Delete("/{id}/purge", h.Purge)
	r.Get("/{id}/reassignments", h.Reassignments)
	r.Get("/{id}/transitions", h.Transitions)
	if h.Kind.Chained() {
		r.Post("/{id}/final-approve", h.FinalApprove)
	}
}

// target resolves the path id and the authenticated actor.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) (int64, permission.Principal, bool) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return 0, actor, false
	}
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return 0, actor, false
	}
	return id, actor, true
}

func (h *Handler) respond(w http.ResponseWriter, out *workflow.Outcome, err error) {
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewTransitionResponse(out))
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	res, err := h.Service.Get(r.Context(), h.Kind, id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewStateResponse(res))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	out, err := h.Service.SubmitForReview(r.Context(), h.Kind, id, actor)
	h.respond(w, out, err)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var dto ApproveDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	out, err := h.Service.Approve(r.Context(), h.Kind, id, actor, dto.Note)
	h.respond(w, out, err)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var dto RejectDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	out, err := h.Service.Reject(r.Context(), h.Kind, id, actor, dto.Reason)
	h.respond(w, out, err)
}

func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var dto ReassignDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	out, err := h.Service.Reassign(r.Context(), h.Kind, id, actor, dto.NewApproverID, dto.Reason)
	h.respond(w, out, err)
}

func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var dto ResubmitDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	out, err := h.Service.Resubmit(r.Context(), h.Kind, id, actor, dto.Content())
	h.respond(w, out, err)
}

func (h *Handler) FinalApprove(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var dto FinalApproveDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	out, err := h.Service.FinalApprove(r.Context(), id, actor, dto.Placements, dto.Note)
	h.respond(w, out, err)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	out, err := h.Service.Cancel(r.Context(), h.Kind, id, actor)
	h.respond(w, out, err)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	out, err := h.Service.Delete(r.Context(), h.Kind, id, actor)
	h.respond(w, out, err)
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	out, err := h.Service.Restore(r.Context(), h.Kind, id, actor)
	h.respond(w, out, err)
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.Service.Purge(r.Context(), h.Kind, id, actor); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Reassignments(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	records, err := h.Service.History(r.Context(), h.Kind, id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if records == nil {
		records = []workflow.ReassignmentRecord{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"reassignments": records})
}

func (h *Handler) Transitions(w http.ResponseWriter, r *http.Request) {
	id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	records, err := h.Service.Transitions(r.Context(), h.Kind, id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if records == nil {
		records = []workflow.TransitionRecord{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"transitions": records})
}
