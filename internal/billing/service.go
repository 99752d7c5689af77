package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Package sentinel errors.
var (
	ErrNotFound      = errors.New("billing: fee not found")
	ErrInvalidInput  = errors.New("billing: invalid input")
	ErrInvalidAmount = errors.New("billing: amount must be positive")
	ErrOverApplied   = errors.New("billing: applied amount exceeds balance")
)

// RepositoryPort defines data access methods for the billing engine.
type RepositoryPort interface {
	// ListBillableStudents returns active students with at least one active
	// subject enrollment, together with their summed monthly fee.
	ListBillableStudents(ctx context.Context, centerID int64) ([]BillableStudent, error)
	// ExistingFeeKeys returns the (student, fee_month) pairs that already
	// have an obligation of the given type within the year.
	ExistingFeeKeys(ctx context.Context, centerID int64, year int, feeType FeeType) (map[FeeKey]struct{}, error)
	// InsertObligations persists one batch of staged obligations.
	InsertObligations(ctx context.Context, obligations []FeeObligation) error

	// GetObligation loads a single obligation scoped to a center.
	GetObligation(ctx context.Context, centerID, feeID int64) (*FeeObligation, error)
	// ListByStudent returns all obligations for a student, newest month first.
	ListByStudent(ctx context.Context, centerID, studentID int64) ([]FeeObligation, error)
	// ListOutstandingByStudent returns unsettled obligations ordered by
	// fee_month ascending. Oldest debts are cleared first.
	ListOutstandingByStudent(ctx context.Context, centerID, studentID int64) ([]FeeObligation, error)
	// ApplyToObligation increases amount_paid, recomputes status and records
	// the allocation line, returning the updated row.
	ApplyToObligation(ctx context.Context, feeID, paymentID int64, applied decimal.Decimal) (*FeeObligation, error)
	// SetRegistrationFeePaid flags the student record once a registration
	// obligation is fully settled.
	SetRegistrationFeePaid(ctx context.Context, studentID int64, paidAt time.Time) error
}

// Service runs fee generation and payment allocation over the ledger.
type Service struct {
	repo          RepositoryPort
	logger        *slog.Logger
	batchSize     int
	ledgerChanged func(context.Context)
}

// NewService builds a Service instance. batchSize bounds a single generator
// insert batch; values below one fall back to the default of 100.
func NewService(repo RepositoryPort, logger *slog.Logger, batchSize int) *Service {
	if batchSize < 1 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, batchSize: batchSize}
}

// SetLedgerChangedHook registers a callback invoked after writes that change
// report outputs, e.g. to bump the report cache version.
func (s *Service) SetLedgerChangedHook(fn func(context.Context)) {
	s.ledgerChanged = fn
}

func (s *Service) notifyLedgerChanged(ctx context.Context) {
	if s.ledgerChanged != nil {
		s.ledgerChanged(ctx)
	}
}

// StudentFees returns the full fee history for one student.
func (s *Service) StudentFees(ctx context.Context, centerID, studentID int64) ([]FeeObligation, error) {
	if centerID == 0 || studentID == 0 {
		return nil, fmt.Errorf("%w: center and student required", ErrInvalidInput)
	}
	return s.repo.ListByStudent(ctx, centerID, studentID)
}
