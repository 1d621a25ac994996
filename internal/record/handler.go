package record

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/approval"
	"github.com/frahmantamala/docflow/internal/auth"
	"github.com/frahmantamala/docflow/internal/permission"
	"github.com/frahmantamala/docflow/internal/transport"
	"github.com/frahmantamala/docflow/internal/workflow"
	"github.com/frahmantamala/docflow/pkg/logger"
)

// multipartMemory is how much of a form ParseMultipartForm keeps in memory.
const multipartMemory = 8 << 20

type ServiceAPI interface {
	Create(ctx context.Context, actor permission.Principal, dto CreateRecordDTO, file *Upload) (*Record, error)
	Get(ctx context.Context, actor permission.Principal, id int64) (*Record, error)
	ListByCabinet(ctx context.Context, actor permission.Principal, cabinetID int64, limit, offset int) ([]*Record, error)
	OpenFile(ctx context.Context, actor permission.Principal, id int64) (*Record, io.ReadCloser, error)
	ResubmitWithFile(ctx context.Context, actor permission.Principal, id int64, file Upload) (*workflow.Outcome, error)
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

// Routes mounts under /records.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.CreateRecord)
	r.Get("/", h.ListRecords)
	r.Get("/{id}", h.GetRecord)
	r.Get("/{id}/file", h.DownloadFile)
	r.Post("/{id}/file", h.ResubmitFile)
}

// CreateRecord accepts multipart/form-data with an optional "file" part, or a
// plain JSON body for records without a file.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var (
		dto    CreateRecordDTO
		upload *Upload
	)
	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			h.HandleServiceError(w, internal.NewValidationError("invalid multipart form", internal.ErrCodeInvalidPayload).WithCause(err))
			return
		}
		dto, err = dtoFromForm(r)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			upload = uploadFrom(file, header)
		} else if err != http.ErrMissingFile {
			h.HandleServiceError(w, internal.NewValidationFieldError("file", "unreadable file part", internal.ErrCodeInvalidPayload))
			return
		}
	} else if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	rec, err := h.Service.Create(r.Context(), actor, dto, upload)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	cabinetID, err := h.ParseID(r.URL.Query().Get("cabinet_id"), "cabinet_id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	limit, offset := h.Pagination(r)
	records, err := h.Service.ListByCabinet(r.Context(), actor, cabinetID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if records == nil {
		records = []*Record{}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
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
	rec, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
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
	rec, body, err := h.Service.OpenFile(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer body.Close()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.FileName))
	if rec.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.Logger.Warn("file download interrupted", "record_id", id, "error", err)
	}
}

// ResubmitFile replaces the file of a rejected record and sends it back for review.
func (h *Handler) ResubmitFile(w http.ResponseWriter, r *http.Request) {
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
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.HandleServiceError(w, internal.NewValidationError("invalid multipart form", internal.ErrCodeInvalidPayload).WithCause(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.HandleServiceError(w, internal.NewValidationFieldError("file", "file is required", internal.ErrCodeValidationFailed))
		return
	}
	defer file.Close()

	out, err := h.Service.ResubmitWithFile(r.Context(), actor, id, *uploadFrom(file, header))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, approval.NewTransitionResponse(out))
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func dtoFromForm(r *http.Request) (CreateRecordDTO, error) {
	dto := CreateRecordDTO{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}
	if raw := r.FormValue("cabinet_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return dto, internal.NewValidationFieldError("cabinet_id", "cabinet_id must be a number", internal.ErrCodeValidationFailed)
		}
		dto.CabinetID = id
	}
	if raw := r.FormValue("approver_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return dto, internal.NewValidationFieldError("approver_id", "approver_id must be a number", internal.ErrCodeValidationFailed)
		}
		dto.ApproverID = &id
	}
	return dto, nil
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) *Upload {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Upload{Name: header.Filename, ContentType: contentType, Body: file}
}
