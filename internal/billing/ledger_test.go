package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// memoryLedger is an in-memory RepositoryPort used by the engine tests.
type memoryLedger struct {
	students    []BillableStudent
	fees        map[int64]*FeeObligation
	feeOrder    []int64
	allocations map[int64][]AllocationLine
	regPaid     map[int64]time.Time
	nextFeeID   int64

	insertCalls     int
	failInsertAfter int   // fail the nth insert call (1-based); 0 disables
	failApplyOnFee  int64 // fail ApplyToObligation for this fee; 0 disables
}

var errLedgerDown = errors.New("ledger unavailable")

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		fees:        make(map[int64]*FeeObligation),
		allocations: make(map[int64][]AllocationLine),
		regPaid:     make(map[int64]time.Time),
	}
}

func (m *memoryLedger) addStudent(id int64, monthlyFee string) {
	m.students = append(m.students, BillableStudent{
		StudentID:  id,
		MonthlyFee: decimal.RequireFromString(monthlyFee),
	})
}

func (m *memoryLedger) addFee(centerID, studentID int64, feeMonth time.Time, feeType FeeType, due string) *FeeObligation {
	m.nextFeeID++
	ob := &FeeObligation{
		ID:        m.nextFeeID,
		CenterID:  centerID,
		StudentID: studentID,
		FeeMonth:  feeMonth,
		FeeType:   feeType,
		AmountDue: decimal.RequireFromString(due),
		Status:    FeeStatusUnpaid,
		DueAt:     DueDateFor(feeMonth),
	}
	m.fees[ob.ID] = ob
	m.feeOrder = append(m.feeOrder, ob.ID)
	return ob
}

func (m *memoryLedger) ListBillableStudents(ctx context.Context, centerID int64) ([]BillableStudent, error) {
	return m.students, nil
}

func (m *memoryLedger) ExistingFeeKeys(ctx context.Context, centerID int64, year int, feeType FeeType) (map[FeeKey]struct{}, error) {
	keys := make(map[FeeKey]struct{})
	for _, ob := range m.fees {
		if ob.CenterID == centerID && ob.FeeType == feeType && ob.FeeMonth.Year() == year {
			keys[FeeKey{StudentID: ob.StudentID, FeeMonth: ob.FeeMonth}] = struct{}{}
		}
	}
	return keys, nil
}

func (m *memoryLedger) InsertObligations(ctx context.Context, obligations []FeeObligation) error {
	m.insertCalls++
	if m.failInsertAfter > 0 && m.insertCalls >= m.failInsertAfter {
		return errLedgerDown
	}
	for _, ob := range obligations {
		key := FeeKey{StudentID: ob.StudentID, FeeMonth: ob.FeeMonth}
		for _, existing := range m.fees {
			if existing.FeeType == ob.FeeType && key == (FeeKey{StudentID: existing.StudentID, FeeMonth: existing.FeeMonth}) {
				return ErrAlreadyExists
			}
		}
		m.nextFeeID++
		stored := ob
		stored.ID = m.nextFeeID
		m.fees[stored.ID] = &stored
		m.feeOrder = append(m.feeOrder, stored.ID)
	}
	return nil
}

func (m *memoryLedger) GetObligation(ctx context.Context, centerID, feeID int64) (*FeeObligation, error) {
	ob, ok := m.fees[feeID]
	if !ok || ob.CenterID != centerID {
		return nil, ErrNotFound
	}
	copied := *ob
	return &copied, nil
}

func (m *memoryLedger) ListByStudent(ctx context.Context, centerID, studentID int64) ([]FeeObligation, error) {
	var out []FeeObligation
	for _, id := range m.feeOrder {
		ob := m.fees[id]
		if ob.CenterID == centerID && ob.StudentID == studentID {
			out = append(out, *ob)
		}
	}
	return out, nil
}

func (m *memoryLedger) ListOutstandingByStudent(ctx context.Context, centerID, studentID int64) ([]FeeObligation, error) {
	var out []FeeObligation
	for _, id := range m.feeOrder {
		ob := m.fees[id]
		if ob.CenterID == centerID && ob.StudentID == studentID && ob.Status != FeeStatusPaid {
			out = append(out, *ob)
		}
	}
	// Oldest fee month first, matching the SQL ordering.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].FeeMonth.Before(out[j-1].FeeMonth); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (m *memoryLedger) ApplyToObligation(ctx context.Context, feeID, paymentID int64, applied decimal.Decimal) (*FeeObligation, error) {
	if m.failApplyOnFee != 0 && feeID == m.failApplyOnFee {
		return nil, errLedgerDown
	}
	ob, ok := m.fees[feeID]
	if !ok {
		return nil, ErrNotFound
	}
	newPaid := ob.AmountPaid.Add(applied)
	if newPaid.GreaterThan(ob.AmountDue) {
		return nil, ErrOverApplied
	}
	ob.AmountPaid = newPaid
	ob.Status = StatusFor(ob.AmountPaid, ob.AmountDue)
	m.allocations[paymentID] = append(m.allocations[paymentID], AllocationLine{FeeID: feeID, Applied: applied})
	copied := *ob
	return &copied, nil
}

func (m *memoryLedger) SetRegistrationFeePaid(ctx context.Context, studentID int64, paidAt time.Time) error {
	m.regPaid[studentID] = paidAt
	return nil
}
