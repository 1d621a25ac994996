package space

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/docflow/internal/auth"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/transport"
	"github.com/frahmantamala/docflow/pkg/logger"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor permission.Principal, dto CreateSpaceDTO) (*Space, error)
	Get(ctx context.Context, actor permission.Principal, id int64) (*Space, error)
	List(ctx context.Context, actor permission.Principal, organizationID int64, limit, offset int) ([]*Space, error)
	Invite(ctx context.Context, actor permission.Principal, spaceID int64, dto CreateInvitationDTO) (*Invitation, error)
	ListInvitations(ctx context.Context, actor permission.Principal, spaceID int64) ([]*Invitation, error)
	Respond(ctx context.Context, actor permission.Principal, dto RespondInvitationDTO) (*Invitation, error)
	Revoke(ctx context.Context, actor permission.Principal, spaceID, invitationID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// Routes mounts under /spaces.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateSpace)
	r.Get("/", h.ListSpaces)
	r.Get("/{id}", h.GetSpace)
	r.Post("/{id}/invitations", h.Invite)
	r.Get("/{id}/invitations", h.ListInvitations)
	r.Delete("/{id}/invitations/{invitationID}", h.RevokeInvitation)
}

func (h *Handler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto CreateSpaceDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	sp, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, sp)
}

func (h *Handler) ListSpaces(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	orgID, err := h.ParseID(r.URL.Query().Get("organization_id"), "organization_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	limit, offset := h.Pagination(r)
	spaces, err := h.Service.List(r.Context(), actor, orgID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"spaces": spaces,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetSpace(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	sp, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, sp)
}

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto CreateInvitationDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	inv, err := h.Service.Invite(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, inv)
}

func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	invitations, err := h.Service.ListInvitations(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if invitations == nil {
		invitations = []*Invitation{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"invitations": invitations})
}

func (h *Handler) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	invitationID, err := h.ParseID(chi.URLParam(r, "invitationID"), "invitation_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := h.Service.Revoke(r.Context(), actor, id, invitationID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RespondInvitation serves POST /invitations/respond.
func (h *Handler) RespondInvitation(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto RespondInvitationDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	inv, err := h.Service.Respond(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, inv)
}
