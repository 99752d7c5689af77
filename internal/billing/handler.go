package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/centerdesk/centerdesk/internal/observability"
	"github.com/centerdesk/centerdesk/internal/platform/httpx"
	"github.com/centerdesk/centerdesk/internal/shared"
)

// SettingsPort supplies the center's configured payment months.
type SettingsPort interface {
	AllowedMonths(ctx context.Context, centerID int64) ([]time.Month, error)
}

// Handler manages billing endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	settings SettingsPort
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, settings SettingsPort, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		settings: settings,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// MountRoutes registers billing routes. The center scope comes from the
// enclosing /centers/{centerID} route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/generate", h.generateFees)
	r.Post("/allocate", h.allocatePayment)
	r.Post("/fees/{feeID}/pay", h.payObligation)
	r.Get("/students/{studentID}/fees", h.listStudentFees)
}

type generateFeesRequest struct {
	Year   int   `json:"year" validate:"required,min=2000,max=2100"`
	Months []int `json:"months" validate:"dive,min=1,max=12"`
}

// generateFees validates the requested months against the center's payment
// months, then runs the generator. Months outside the configured list are
// rejected before the engine is invoked.
func (h *Handler) generateFees(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	var req generateFeesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	allowed, err := h.settings.AllowedMonths(r.Context(), centerID)
	if err != nil {
		h.logger.Error("load payment months", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}
	allowedSet := make(map[time.Month]struct{}, len(allowed))
	for _, m := range allowed {
		allowedSet[m] = struct{}{}
	}

	months := make([]time.Month, 0, len(req.Months))
	for _, m := range req.Months {
		month := time.Month(m)
		if _, ok := allowedSet[month]; !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed",
				shared.UserSafeMessage(shared.ErrMonthNotBillable))
			return
		}
		months = append(months, month)
	}

	res, err := h.service.GenerateFees(r.Context(), centerID, req.Year, months)
	if err != nil {
		h.logger.Error("generate fees", slog.Any("error", err), slog.Int64("center_id", centerID))
		httpx.RespondError(w, err)
		return
	}

	h.metrics.AddFeesGenerated(res.FeesGenerated)
	httpx.JSON(w, http.StatusOK, res)
}

type allocatePaymentRequest struct {
	StudentID int64           `json:"student_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	PaymentID int64           `json:"payment_id" validate:"required"`
}

func (h *Handler) allocatePayment(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	var req allocatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	res, err := h.service.AllocatePayment(r.Context(), centerID, req.StudentID, req.Amount, req.PaymentID)
	if err != nil {
		h.logger.Error("allocate payment", slog.Any("error", err),
			slog.Int64("payment_id", req.PaymentID), slog.Int64("student_id", req.StudentID))
		if errors.Is(err, ErrInvalidAmount) || errors.Is(err, ErrInvalidInput) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}

	h.metrics.IncAllocations()
	httpx.JSON(w, http.StatusOK, res)
}

type payObligationRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	PaymentID int64           `json:"payment_id" validate:"required"`
}

func (h *Handler) payObligation(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	feeID, err := strconv.ParseInt(chi.URLParam(r, "feeID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Fee ID", "")
		return
	}

	var req payObligationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	applied, err := h.service.PayObligation(r.Context(), centerID, feeID, req.Amount, req.PaymentID)
	if err != nil {
		h.logger.Error("pay obligation", slog.Any("error", err), slog.Int64("fee_id", feeID))
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "fee not found")
		case errors.Is(err, ErrInvalidAmount):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			httpx.RespondError(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"applied_amount": applied})
}

func (h *Handler) listStudentFees(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "")
		return
	}

	fees, err := h.service.StudentFees(r.Context(), centerID, studentID)
	if err != nil {
		h.logger.Error("list student fees", slog.Any("error", err), slog.Int64("student_id", studentID))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"fees": fees})
}

func centerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	centerID, err := strconv.ParseInt(chi.URLParam(r, "centerID"), 10, 64)
	if err != nil || centerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Center ID", "")
		return 0, false
	}
	return centerID, true
}
