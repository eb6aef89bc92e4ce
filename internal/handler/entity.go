package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type EntityHandler struct {
	service *service.EntityService
	logger  *zap.Logger
}

func NewEntityHandler(srv *service.EntityService, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{
		service: srv,
		logger:  logger,
	}
}

// Routes вешает маршруты сущностей на роутер
func (h *EntityHandler) Routes(r chi.Router) {
	r.Route("/api/entities", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/bulk", h.BulkUpdate)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// patchRequest - проводной формат дельты. assignee_set отличает явный null
// исполнителя от не присланного поля.
type patchRequest struct {
	ID          *string       `json:"id"`
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	Status      *model.Status `json:"status"`
	Priority    *int          `json:"priority"`
	Assignee    *string       `json:"assignee_id"`
	AssigneeSet bool          `json:"assignee_set"`
	ProjectID   *string       `json:"project_id"`
	Tags        *[]string     `json:"tags"`
	DueDate     *time.Time    `json:"due_date"`
	CompletedAt *time.Time    `json:"completed_at"`
	IDs         []string      `json:"ids"`
}

func (req patchRequest) toPatch() model.Patch {
	return model.Patch{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Assignee:    req.Assignee,
		AssigneeSet: req.AssigneeSet,
		ProjectID:   req.ProjectID,
		Tags:        req.Tags,
		DueDate:     req.DueDate,
		CompletedAt: req.CompletedAt,
	}
}

func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := respond.Decode(r, &req); err != nil {
		h.logger.Error("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}

	entity, err := h.service.Create(r.Context(), req.toPatch())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/entities/"+entity.ID)
	respond.JSON(w, r, http.StatusCreated, entity)
}

func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, entity)
}

func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter model.FilterState
	filter.Search = r.URL.Query().Get("search")
	for _, s := range r.URL.Query()["status"] {
		filter.Statuses = append(filter.Statuses, model.Status(s))
	}
	filter.Assignees = r.URL.Query()["assignee"]
	filter.Projects = r.URL.Query()["project"]

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.service.List(r.Context(), filter, limit)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, items)
}

func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req patchRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	entity, err := h.service.Patch(r.Context(), id, req.toPatch())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, entity)
}

// BulkUpdate применяет одну дельту к набору id; или все, или ничего
func (h *EntityHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	items, err := h.service.BulkPatch(r.Context(), req.IDs, req.toPatch())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, items)
}

func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *EntityHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, "validation error")
	default:
		h.logger.Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}
