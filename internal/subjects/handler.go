package subjects

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

// Handler manages subject and enrollment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers subject routes under /centers/{centerID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{subjectID}/enroll/{studentID}", h.enroll)
	r.Post("/{subjectID}/drop/{studentID}", h.drop)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	subjects, err := h.service.ListSubjects(r.Context(), centerID)
	if err != nil {
		h.logger.Error("list subjects", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	var input SubjectInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sub, err := h.service.CreateSubject(r.Context(), centerID, input)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("create subject", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, sub)
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	subjectID, studentID, ok := pairParams(w, r)
	if !ok {
		return
	}

	enr, err := h.service.Enroll(r.Context(), centerID, studentID, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyEnrolled):
			httpx.Problem(w, http.StatusConflict, "Duplicate", "student already enrolled in subject")
		case errors.Is(err, shared.ErrValidation):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
		default:
			h.logger.Error("enroll student", slog.Any("error", err),
				slog.Int64("student_id", studentID), slog.Int64("subject_id", subjectID))
			httpx.RespondError(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, enr)
}

func (h *Handler) drop(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	subjectID, studentID, ok := pairParams(w, r)
	if !ok {
		return
	}

	if err := h.service.Drop(r.Context(), centerID, studentID, subjectID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "active enrollment not found")
			return
		}
		h.logger.Error("drop enrollment", slog.Any("error", err),
			slog.Int64("student_id", studentID), slog.Int64("subject_id", subjectID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"status": EnrollmentDropped})
}

func pairParams(w http.ResponseWriter, r *http.Request) (subjectID, studentID int64, ok bool) {
	subjectID, err := strconv.ParseInt(chi.URLParam(r, "subjectID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Subject ID", "")
		return 0, 0, false
	}
	studentID, err = strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "")
		return 0, 0, false
	}
	return subjectID, studentID, true
}

func centerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	centerID, err := strconv.ParseInt(chi.URLParam(r, "centerID"), 10, 64)
	if err != nil || centerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Center ID", "")
		return 0, false
	}
	return centerID, true
}
