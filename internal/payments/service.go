package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centerdesk/centerdesk/internal/billing"
	"github.com/centerdesk/centerdesk/internal/shared"
)

// Package sentinel errors.
var (
	ErrNotFound      = errors.New("payments: payment not found")
	ErrRefundExceeds = errors.New("payments: refund exceeds refundable amount")
	ErrInvalidAmount = errors.New("payments: amount must be positive")
	ErrUnknownMethod = errors.New("payments: unknown payment method")
)

// RepositoryPort defines data access methods for payments.
type RepositoryPort interface {
	Create(ctx context.Context, p Payment) (*Payment, error)
	Get(ctx context.Context, centerID, paymentID int64) (*Payment, error)
	ListByStudent(ctx context.Context, centerID, studentID int64) ([]Payment, error)
	// AddRefund increases refunded_amount, guarded so the total refunded
	// never exceeds the payment amount. Returns the updated row.
	AddRefund(ctx context.Context, centerID, paymentID int64, amount decimal.Decimal) (*Payment, error)
}

// AllocatorPort runs the billing allocation walk for a captured payment.
type AllocatorPort interface {
	AllocatePayment(ctx context.Context, centerID, studentID int64, amount decimal.Decimal, paymentID int64) (billing.AllocationResult, error)
}

// Service captures payments and hands them to the billing allocator.
type Service struct {
	repo          RepositoryPort
	allocator     AllocatorPort
	logger        *slog.Logger
	ledgerChanged func(context.Context)
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, allocator AllocatorPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, allocator: allocator, logger: logger}
}

// SetLedgerChangedHook registers a callback invoked after captures and
// refunds, which alter collection reports.
func (s *Service) SetLedgerChangedHook(fn func(context.Context)) {
	s.ledgerChanged = fn
}

func (s *Service) notifyLedgerChanged(ctx context.Context) {
	if s.ledgerChanged != nil {
		s.ledgerChanged(ctx)
	}
}

// RecordInput is the payload for capturing a payment.
type RecordInput struct {
	StudentID  int64
	Amount     decimal.Decimal
	Method     Method
	Note       string
	ReceivedAt time.Time
}

// RecordResult pairs the stored payment with its allocation breakdown.
type RecordResult struct {
	Payment    *Payment                 `json:"payment"`
	Allocation billing.AllocationResult `json:"allocation"`
}

// Record stores the payment and allocates it across the student's
// outstanding fees, oldest first. The payment row is written before the
// allocation walk runs; an allocation failure leaves the row in place so the
// captured money is never lost, and the partial breakdown is returned with
// the error.
func (s *Service) Record(ctx context.Context, centerID int64, input RecordInput) (*RecordResult, error) {
	if centerID <= 0 || input.StudentID <= 0 {
		return nil, fmt.Errorf("%w: center and student required", shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !ValidMethod(input.Method) {
		return nil, ErrUnknownMethod
	}
	if input.ReceivedAt.IsZero() {
		input.ReceivedAt = time.Now().UTC()
	}

	stored, err := s.repo.Create(ctx, Payment{
		CenterID:       centerID,
		StudentID:      input.StudentID,
		Reference:      uuid.New(),
		Amount:         input.Amount,
		RefundedAmount: decimal.Zero,
		Method:         input.Method,
		Note:           input.Note,
		ReceivedAt:     input.ReceivedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("payments: store payment: %w", err)
	}

	s.notifyLedgerChanged(ctx)

	alloc, err := s.allocator.AllocatePayment(ctx, centerID, input.StudentID, input.Amount, stored.ID)
	res := &RecordResult{Payment: stored, Allocation: alloc}
	if err != nil {
		s.logger.Error("allocation failed after capture",
			slog.Any("error", err), slog.Int64("payment_id", stored.ID))
		return res, err
	}

	s.logger.Info("payment recorded",
		slog.Int64("payment_id", stored.ID),
		slog.Int64("student_id", input.StudentID),
		slog.String("amount", input.Amount.String()),
		slog.String("reference", stored.Reference.String()))
	return res, nil
}

// Get loads one payment scoped to a center.
func (s *Service) Get(ctx context.Context, centerID, paymentID int64) (*Payment, error) {
	return s.repo.Get(ctx, centerID, paymentID)
}

// StudentPayments lists a student's payments, newest first.
func (s *Service) StudentPayments(ctx context.Context, centerID, studentID int64) ([]Payment, error) {
	if studentID <= 0 {
		return nil, fmt.Errorf("%w: student required", shared.ErrValidation)
	}
	return s.repo.ListByStudent(ctx, centerID, studentID)
}

// Refund records a refund against a payment. The refund is capped by what
// remains refundable; exceeding it is rejected rather than clamped. Refunds
// do not claw back fee allocations already applied.
func (s *Service) Refund(ctx context.Context, centerID, paymentID int64, amount decimal.Decimal) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	p, err := s.repo.Get(ctx, centerID, paymentID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(p.Refundable()) {
		return nil, ErrRefundExceeds
	}

	updated, err := s.repo.AddRefund(ctx, centerID, paymentID, amount)
	if err != nil {
		return nil, fmt.Errorf("payments: record refund: %w", err)
	}
	s.notifyLedgerChanged(ctx)

	s.logger.Info("payment refunded",
		slog.Int64("payment_id", paymentID),
		slog.String("amount", amount.String()))
	return updated, nil
}
