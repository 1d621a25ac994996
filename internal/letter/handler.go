package letter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/auth"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/transport"
	"github.com/frahmantamala/docflow/pkg/logger"
)

const multipartMemory = 8 << 20

type ServiceAPI interface {
	Create(ctx context.Context, actor permission.Principal, dto CreateLetterDTO, file *Upload) (*Letter, error)
	Get(ctx context.Context, actor permission.Principal, id int64) (*Letter, error)
	ListBySpace(ctx context.Context, actor permission.Principal, spaceID int64, limit, offset int) ([]*Letter, error)
	Public(ctx context.Context, actor permission.Principal, id int64) (*Letter, error)
	OpenFile(ctx context.Context, actor permission.Principal, id int64, public bool) (*Letter, io.ReadCloser, error)
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

// Routes mounts under /letters behind authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateLetter)
	r.Get("/", h.ListLetters)
	r.Get("/{id}", h.GetLetter)
	r.Get("/{id}/file", h.DownloadFile)
}

// PublicRoutes mounts under /public/letters with optional authentication.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/{id}", h.GetPublicLetter)
	r.Get("/{id}/file", h.DownloadPublicFile)
}

// CreateLetter takes a JSON body, or multipart/form-data with the JSON in a
// "payload" field and the document in "file".
func (h *Handler) CreateLetter(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var (
		dto    CreateLetterDTO
		upload *Upload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			h.HandleServiceError(w, internal.NewValidationError("invalid multipart form", internal.ErrCodeInvalidPayload).WithCause(err))
			return
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload")), &dto); err != nil {
			h.HandleServiceError(w, internal.NewValidationFieldError("payload", "payload must be a JSON letter", internal.ErrCodeInvalidPayload))
			return
		}
		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			contentType := header.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			upload = &Upload{Name: header.Filename, ContentType: contentType, Body: file}
		case err != http.ErrMissingFile:
			h.HandleServiceError(w, internal.NewValidationFieldError("file", "unreadable file part", internal.ErrCodeInvalidPayload))
			return
		}
	} else if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	l, err := h.Service.Create(r.Context(), actor, dto, upload)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) ListLetters(w http.ResponseWriter, r *http.Request) {
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
	letters, err := h.Service.ListBySpace(r.Context(), actor, spaceID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if letters == nil {
		letters = []*Letter{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"letters": letters,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *Handler) GetLetter(w http.ResponseWriter, r *http.Request) {
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
	l, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) GetPublicLetter(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFromContext(r.Context())
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	l, err := h.Service.Public(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewPublicView(l))
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.serveFile(w, r, actor, false)
}

func (h *Handler) DownloadPublicFile(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.PrincipalFromContext(r.Context())
	h.serveFile(w, r, actor, true)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, actor permission.Principal, public bool) {
	id, err := h.ParseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	l, body, err := h.Service.OpenFile(r.Context(), actor, id, public)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", l.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.Logger.Warn("file download interrupted", "letter_id", id, "error", err)
	}
}
