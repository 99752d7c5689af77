package students

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/centerdesk/centerdesk/internal/platform/httpx"
	"github.com/centerdesk/centerdesk/internal/shared"
)

// Handler manages student endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers student routes under /centers/{centerID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{studentID}", h.get)
	r.Post("/{studentID}/activate", h.activate)
	r.Post("/{studentID}/deactivate", h.deactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	pagination := shared.NewPagination(page, perPage, 0)
	list, total, err := h.service.List(r.Context(), centerID, pagination)
	if err != nil {
		h.logger.Error("list students", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"students":   list,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	var input StudentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	st, err := h.service.Create(r.Context(), centerID, input)
	if err != nil {
		h.logger.Error("create student", slog.Any("error", err), slog.Int64("center_id", centerID))
		if errors.Is(err, shared.ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
			return
		}
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, st)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "")
		return
	}

	st, err := h.service.Get(r.Context(), centerID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "student not found")
			return
		}
		h.logger.Error("get student", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusActive)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusInactive)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status StudentStatus) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "")
		return
	}

	if status == StatusActive {
		err = h.service.Activate(r.Context(), centerID, id)
	} else {
		err = h.service.Deactivate(r.Context(), centerID, id)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "student not found")
			return
		}
		h.logger.Error("set student status", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"status": status})
}

func centerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	centerID, err := strconv.ParseInt(chi.URLParam(r, "centerID"), 10, 64)
	if err != nil || centerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Center ID", "")
		return 0, false
	}
	return centerID, true
}
