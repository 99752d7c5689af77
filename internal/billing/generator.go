package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// GenerateFees materialises tuition obligations for the given year and months
// across all billable students of a center, skipping (student, month) pairs
// that already have a tuition row. Re-running with the same arguments is
// idempotent in effect: no duplicate rows are created.
//
// Inserts happen in batches of the configured size. A batch failure aborts
// the run and surfaces the storage error; batches committed before the
// failure remain committed.
func (s *Service) GenerateFees(ctx context.Context, centerID int64, year int, months []time.Month) (GenerateResult, error) {
	var res GenerateResult
	if centerID == 0 {
		return res, fmt.Errorf("%w: center required", ErrInvalidInput)
	}
	months = dedupeMonths(months)
	if len(months) == 0 {
		return res, nil
	}

	students, err := s.repo.ListBillableStudents(ctx, centerID)
	if err != nil {
		return res, fmt.Errorf("billing: list billable students: %w", err)
	}
	// Students without a positive monthly total generate nothing.
	billable := students[:0:0]
	for _, st := range students {
		if st.MonthlyFee.IsPositive() {
			billable = append(billable, st)
		}
	}
	res.StudentsProcessed = len(billable)
	if len(billable) == 0 {
		return res, nil
	}

	existing, err := s.repo.ExistingFeeKeys(ctx, centerID, year, FeeTypeTuition)
	if err != nil {
		return res, fmt.Errorf("billing: load existing fee keys: %w", err)
	}

	now := time.Now()
	var staged []FeeObligation
	for _, st := range billable {
		for _, month := range months {
			feeMonth := FeeMonthOf(year, month)
			if _, ok := existing[FeeKey{StudentID: st.StudentID, FeeMonth: feeMonth}]; ok {
				continue
			}
			staged = append(staged, FeeObligation{
				CenterID:  centerID,
				StudentID: st.StudentID,
				FeeMonth:  feeMonth,
				FeeType:   FeeTypeTuition,
				AmountDue: st.MonthlyFee,
				Status:    FeeStatusUnpaid,
				DueAt:     DueDateFor(feeMonth),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
	}

	for start := 0; start < len(staged); start += s.batchSize {
		end := start + s.batchSize
		if end > len(staged) {
			end = len(staged)
		}
		if err := s.repo.InsertObligations(ctx, staged[start:end]); err != nil {
			if res.FeesGenerated > 0 {
				s.notifyLedgerChanged(ctx)
			}
			return res, fmt.Errorf("billing: insert fee batch: %w", err)
		}
		res.FeesGenerated += end - start
	}

	if res.FeesGenerated > 0 {
		s.notifyLedgerChanged(ctx)
	}
	s.logger.Info("fee generation complete",
		slog.Int64("center_id", centerID),
		slog.Int("year", year),
		slog.Int("months", len(months)),
		slog.Int("students", res.StudentsProcessed),
		slog.Int("generated", res.FeesGenerated))
	return res, nil
}

// dedupeMonths drops repeated and out-of-range months, preserving order.
func dedupeMonths(months []time.Month) []time.Month {
	seen := make(map[time.Month]struct{}, len(months))
	out := months[:0:0]
	for _, m := range months {
		if m < time.January || m > time.December {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
