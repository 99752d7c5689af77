package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// AllocatePayment distributes a captured payment amount across the student's
// outstanding obligations, oldest fee month first, regardless of fee type.
// Each obligation absorbs min(remaining, balance). Whatever is left after
// the walk is returned as RemainingCredit; no credit ledger entry is created
// for it, surfacing the credit is the caller's responsibility.
//
// A persistence error mid-walk aborts the remaining updates. Obligations
// already updated stay updated; the partial breakdown is returned alongside
// the error so the caller can reconcile.
func (s *Service) AllocatePayment(ctx context.Context, centerID, studentID int64, amount decimal.Decimal, paymentID int64) (AllocationResult, error) {
	res := AllocationResult{RemainingCredit: amount}
	if centerID == 0 || studentID == 0 {
		return res, fmt.Errorf("%w: center and student required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return res, ErrInvalidAmount
	}

	outstanding, err := s.repo.ListOutstandingByStudent(ctx, centerID, studentID)
	if err != nil {
		return res, fmt.Errorf("billing: list outstanding fees: %w", err)
	}

	remaining := amount
	for _, ob := range outstanding {
		applied := decimal.Min(remaining, ob.Balance())
		if !applied.IsPositive() {
			continue
		}

		updated, err := s.repo.ApplyToObligation(ctx, ob.ID, paymentID, applied)
		if err != nil {
			res.RemainingCredit = remaining
			if len(res.Allocations) > 0 {
				s.notifyLedgerChanged(ctx)
			}
			return res, fmt.Errorf("billing: apply payment %d to fee %d: %w", paymentID, ob.ID, err)
		}

		res.Allocations = append(res.Allocations, AllocationLine{FeeID: ob.ID, Applied: applied})
		remaining = remaining.Sub(applied)

		if err := s.settleSideEffects(ctx, updated); err != nil {
			res.RemainingCredit = remaining
			return res, err
		}

		if remaining.IsZero() {
			break
		}
	}

	res.RemainingCredit = remaining
	if len(res.Allocations) > 0 {
		s.notifyLedgerChanged(ctx)
	}
	s.logger.Info("payment allocated",
		slog.Int64("student_id", studentID),
		slog.Int64("payment_id", paymentID),
		slog.Int("fees_touched", len(res.Allocations)),
		slog.String("credit", res.RemainingCredit.String()))
	return res, nil
}

// PayObligation applies a payment against one specific obligation, bypassing
// the oldest-first ordering. The applied amount is capped at the obligation's
// balance; the cap, not an error, handles overshoot. Returns the amount
// actually applied.
func (s *Service) PayObligation(ctx context.Context, centerID, feeID int64, amount decimal.Decimal, paymentID int64) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	ob, err := s.repo.GetObligation(ctx, centerID, feeID)
	if err != nil {
		return decimal.Zero, err
	}

	applied := decimal.Min(amount, ob.Balance())
	if !applied.IsPositive() {
		return decimal.Zero, nil
	}

	updated, err := s.repo.ApplyToObligation(ctx, feeID, paymentID, applied)
	if err != nil {
		return decimal.Zero, fmt.Errorf("billing: apply payment %d to fee %d: %w", paymentID, feeID, err)
	}
	s.notifyLedgerChanged(ctx)
	if err := s.settleSideEffects(ctx, updated); err != nil {
		return applied, err
	}
	return applied, nil
}

// settleSideEffects flags the student record when a registration obligation
// reaches paid status.
func (s *Service) settleSideEffects(ctx context.Context, ob *FeeObligation) error {
	if ob == nil || ob.Status != FeeStatusPaid || ob.FeeType != FeeTypeRegistration {
		return nil
	}
	if err := s.repo.SetRegistrationFeePaid(ctx, ob.StudentID, time.Now()); err != nil {
		return fmt.Errorf("billing: mark registration fee paid for student %d: %w", ob.StudentID, err)
	}
	return nil
}
