package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/centerdesk/centerdesk/internal/platform/httpx"
)

// Handler manages payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payment routes under the center scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.recordPayment)
	r.Get("/{paymentID}", h.getPayment)
	r.Post("/{paymentID}/refund", h.refundPayment)
	r.Get("/students/{studentID}", h.listStudentPayments)
}

type recordPaymentRequest struct {
	StudentID  int64           `json:"student_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Method     string          `json:"method" validate:"required,oneof=cash card eft"`
	Note       string          `json:"note" validate:"max=500"`
	ReceivedAt *time.Time      `json:"received_at"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := RecordInput{
		StudentID: req.StudentID,
		Amount:    req.Amount,
		Method:    Method(req.Method),
		Note:      req.Note,
	}
	if req.ReceivedAt != nil {
		input.ReceivedAt = *req.ReceivedAt
	}

	res, err := h.service.Record(r.Context(), centerID, input)
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err),
			slog.Int64("center_id", centerID), slog.Int64("student_id", req.StudentID))
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUnknownMethod):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		case res != nil && res.Payment != nil:
			// Payment captured but allocation aborted mid-walk. Surface the
			// partial breakdown so the operator can reconcile.
			httpx.JSON(w, http.StatusMultiStatus, res)
		default:
			httpx.RespondError(w, err)
		}
		return
	}

	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payment ID", "")
		return
	}

	p, err := h.service.Get(r.Context(), centerID, paymentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "payment not found")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

func (h *Handler) refundPayment(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	paymentID, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payment ID", "")
		return
	}

	var req refundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}

	p, err := h.service.Refund(r.Context(), centerID, paymentID, req.Amount)
	if err != nil {
		h.logger.Error("refund payment", slog.Any("error", err), slog.Int64("payment_id", paymentID))
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "payment not found")
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrRefundExceeds):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listStudentPayments(w http.ResponseWriter, r *http.Request) {
	centerID, ok := centerParam(w, r)
	if !ok {
		return
	}
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "")
		return
	}

	list, err := h.service.StudentPayments(r.Context(), centerID, studentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": list})
}

func centerParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	centerID, err := strconv.ParseInt(chi.URLParam(r, "centerID"), 10, 64)
	if err != nil || centerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Center ID", "")
		return 0, false
	}
	return centerID, true
}
