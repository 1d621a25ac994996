package organization

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
	Create(ctx context.Context, actor permission.Principal, dto CreateOrganizationDTO) (*Organization, error)
	Get(ctx context.Context, actor permission.Principal, id int64) (*Organization, error)
	ListForUser(ctx context.Context, actor permission.Principal) ([]*Organization, error)
	ListMembers(ctx context.Context, actor permission.Principal, organizationID int64, limit, offset int) ([]*Member, error)
	AddMember(ctx context.Context, actor permission.Principal, organizationID int64, dto AddMemberDTO) (*Member, error)
	ChangeRole(ctx context.Context, actor permission.Principal, organizationID, userID int64, dto ChangeRoleDTO) (*Member, error)
	SetStatus(ctx context.Context, actor permission.Principal, organizationID, userID int64, dto SetStatusDTO) (*Member, error)
	SetCustomPermissions(ctx context.Context, actor permission.Principal, organizationID, userID int64, custom permission.CustomPermissions) (*Member, error)
	Effective(ctx context.Context, actor permission.Principal, organizationID, userID, cabinetID int64) (*Capabilities, error)
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

// Routes mounts under /organizations.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateOrganization)
	r.Get("/", h.ListOrganizations)
	r.Get("/{id}", h.GetOrganization)
	r.Get("/{id}/members", h.ListMembers)
	r.Post("/{id}/members", h.AddMember)
	r.Put("/{id}/members/{userID}/role", h.ChangeRole)
	r.Put("/{id}/members/{userID}/status", h.SetStatus)
	r.Put("/{id}/members/{userID}/permissions", h.SetCustomPermissions)
	r.Get("/{id}/members/{userID}/capabilities", h.Capabilities)
}

func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto CreateOrganizationDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	o, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	orgs, err := h.Service.ListForUser(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if orgs == nil {
		orgs = []*Organization{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
}

func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	o, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	limit, offset := h.Pagination(r)
	members, err := h.Service.ListMembers(r.Context(), actor, id, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if members == nil {
		members = []*Member{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var dto AddMemberDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	m, err := h.Service.AddMember(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, id, userID, ok := h.memberPath(w, r)
	if !ok {
		return
	}
	var dto ChangeRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	m, err := h.Service.ChangeRole(r.Context(), actor, id, userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, userID, ok := h.memberPath(w, r)
	if !ok {
		return
	}
	var dto SetStatusDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	m, err := h.Service.SetStatus(r.Context(), actor, id, userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) SetCustomPermissions(w http.ResponseWriter, r *http.Request) {
	actor, id, userID, ok := h.memberPath(w, r)
	if !ok {
		return
	}
	var custom permission.CustomPermissions
	if err := h.DecodeJSON(r, &custom); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	m, err := h.Service.SetCustomPermissions(r.Context(), actor, id, userID, custom)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) Capabilities(w http.ResponseWriter, r *http.Request) {
	actor, id, userID, ok := h.memberPath(w, r)
	if !ok {
		return
	}
	var cabinetID int64
	if raw := r.URL.Query().Get("cabinet_id"); raw != "" {
		parsed, err := h.ParseID(raw, "cabinet_id")
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		cabinetID = parsed
	}
	caps, err := h.Service.Effective(r.Context(), actor, id, userID, cabinetID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, caps)
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (permission.Principal, int64, bool) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return permission.Principal{}, 0, false
	}
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return permission.Principal{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) memberPath(w http.ResponseWriter, r *http.Request) (permission.Principal, int64, int64, bool) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return actor, 0, 0, false
	}
	userID, err := h.ParseID(chi.URLParam(r, "userID"), "user_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return actor, 0, 0, false
	}
	return actor, id, userID, true
}
