package reporting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/centerdesk/centerdesk/internal/platform/httpx"
)

// Handler manages report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes under the center scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/outstanding", h.outstanding)
	r.Get("/collections", h.collections)
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Outstanding(r.Context(), centerID)
	if err != nil {
		h.logger.Error("outstanding report", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// collections expects from/to query params in YYYY-MM form. Missing params
// default to the last six months.
func (h *Handler) collections(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, -5, 0)
	to := now
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "from must be YYYY-MM")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "to must be YYYY-MM")
			return
		}
		to = parsed
	}

	report, err := h.service.CollectionsBetween(r.Context(), centerID, from, to)
	if err != nil {
		h.logger.Error("collections report", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func centerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	centerID, err := strconv.ParseInt(chi.URLParam(r, "centerID"), 10, 64)
	if err != nil || centerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Center ID", "")
		return 0, false
	}
	return centerID, true
}
