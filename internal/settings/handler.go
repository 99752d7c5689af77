package settings

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/centerdesk/centerdesk/internal/platform/httpx"
)

// Handler manages center settings endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers settings routes under the center scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.getSettings)
	r.Put("/", h.updateSettings)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	cfg, err := h.service.Get(r.Context(), centerID)
	if err != nil {
		h.logger.Error("get settings", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cfg)
}

type updateSettingsRequest struct {
	PaymentMonths []int  `json:"payment_months" validate:"required,min=1,dive,min=1,max=12"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	var req updateSettingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	cfg := CenterSettings{
		CenterID: centerID,
		Currency: req.Currency,
	}
	for _, m := range req.PaymentMonths {
		cfg.PaymentMonths = append(cfg.PaymentMonths, time.Month(m))
	}

	if err := h.service.Update(r.Context(), cfg); err != nil {
		h.logger.Error("update settings", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func centerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	centerID, err := strconv.ParseInt(chi.URLParam(r, "centerID"), 10, 64)
	if err != nil || centerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Center ID", "")
		return 0, false
	}
	return centerID, true
}
