package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeType categorises a fee obligation.
type FeeType string

const (
	FeeTypeTuition      FeeType = "tuition"
	FeeTypeRegistration FeeType = "registration"
)

// FeeStatus enumerates fee obligation statuses.
type FeeStatus string

const (
	FeeStatusUnpaid  FeeStatus = "unpaid"
	FeeStatusPartial FeeStatus = "partial"
	FeeStatusPaid    FeeStatus = "paid"
)

// StatusFor derives the status from the paid and due amounts. Status is a
// pure function of the two amounts and must never be set independently.
func StatusFor(paid, due decimal.Decimal) FeeStatus {
	switch {
	case paid.GreaterThanOrEqual(due):
		return FeeStatusPaid
	case paid.IsPositive():
		return FeeStatusPartial
	default:
		return FeeStatusUnpaid
	}
}

// DueDayOfMonth is the day of the fee month on which payment falls due.
const DueDayOfMonth = 7

// FeeObligation is one billing ledger row: one student, one calendar month,
// one fee category. (student_id, fee_month, fee_type) is unique.
type FeeObligation struct {
	ID         int64
	CenterID   int64
	StudentID  int64
	FeeMonth   time.Time
	FeeType    FeeType
	AmountDue  decimal.Decimal
	AmountPaid decimal.Decimal
	Status     FeeStatus
	DueAt      time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Balance returns the outstanding amount. Never negative for a valid row.
func (f FeeObligation) Balance() decimal.Decimal {
	return f.AmountDue.Sub(f.AmountPaid)
}

// Valid reports whether the row satisfies the ledger invariants:
// 0 <= amount_paid <= amount_due and status consistent with the amounts.
func (f FeeObligation) Valid() bool {
	if f.AmountPaid.IsNegative() || f.AmountPaid.GreaterThan(f.AmountDue) {
		return false
	}
	return f.Status == StatusFor(f.AmountPaid, f.AmountDue)
}

// FeeMonthOf normalises a billing period to the first day of the month, UTC.
func FeeMonthOf(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// DueDateFor returns the due date for a fee month.
func DueDateFor(feeMonth time.Time) time.Time {
	return time.Date(feeMonth.Year(), feeMonth.Month(), DueDayOfMonth, 0, 0, 0, 0, time.UTC)
}

// FeeKey identifies an obligation within one year's generation scope.
type FeeKey struct {
	StudentID int64
	FeeMonth  time.Time
}

// BillableStudent is an active student with the monthly tuition total summed
// from active subject enrollments. The total is frozen into each obligation
// at creation time.
type BillableStudent struct {
	StudentID  int64
	MonthlyFee decimal.Decimal
}

// GenerateResult summarises a generation run.
type GenerateResult struct {
	StudentsProcessed int `json:"students_processed"`
	FeesGenerated     int `json:"fees_generated"`
}

// AllocationLine records how much of a payment landed on one obligation.
type AllocationLine struct {
	FeeID   int64           `json:"fee_id"`
	Applied decimal.Decimal `json:"applied_amount"`
}

// AllocationResult is the outcome of an allocation run. Applied amounts plus
// RemainingCredit always equal the input payment amount.
type AllocationResult struct {
	Allocations     []AllocationLine `json:"allocations"`
	RemainingCredit decimal.Decimal  `json:"remaining_credit"`
}
