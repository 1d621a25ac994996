package cabinet

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
	Create(ctx context.Context, actor permission.Principal, dto CreateCabinetDTO) (*Cabinet, error)
	Get(ctx context.Context, actor permission.Principal, id int64) (*Cabinet, error)
	ListBySpace(ctx context.Context, actor permission.Principal, spaceID int64, limit, offset int) ([]*Cabinet, error)
	SetMemberPermission(ctx context.Context, actor permission.Principal, cabinetID, userID int64, dto MemberPermissionDTO) (*MemberPermission, error)
	ListMemberPermissions(ctx context.Context, actor permission.Principal, cabinetID int64) ([]*MemberPermission, error)
	RemoveMemberPermission(ctx context.Context, actor permission.Principal, cabinetID, userID int64) error
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

// Routes mounts under /cabinets.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateCabinet)
	r.Get("/", h.ListCabinets)
	r.Get("/{id}", h.GetCabinet)
	r.Get("/{id}/permissions", h.ListPermissions)
	r.Put("/{id}/permissions/{userID}", h.SetPermission)
	r.Delete("/{id}/permissions/{userID}", h.RemovePermission)
}

func (h *Handler) CreateCabinet(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto CreateCabinetDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	c, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListCabinets(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	spaceID, err := h.ParseID(r.URL.Query().Get("space_id"), "space_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	limit, offset := h.Pagination(r)
	cabinets, err := h.Service.ListBySpace(r.Context(), actor, spaceID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cabinets": cabinets,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *Handler) GetCabinet(w http.ResponseWriter, r *http.Request) {
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
	c, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
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
	perms, err := h.Service.ListMemberPermissions(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if perms == nil {
		perms = []*MemberPermission{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms})
}

func (h *Handler) SetPermission(w http.ResponseWriter, r *http.Request) {
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
	userID, err := h.ParseID(chi.URLParam(r, "userID"), "user_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto MemberPermissionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	p, err := h.Service.SetMemberPermission(r.Context(), actor, id, userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) RemovePermission(w http.ResponseWriter, r *http.Request) {
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
	userID, err := h.ParseID(chi.URLParam(r, "userID"), "user_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := h.Service.RemoveMemberPermission(r.Context(), actor, id, userID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
