package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// requireConserved checks that applied amounts plus remaining credit equal
// the original payment amount.
func requireConserved(t *testing.T, res AllocationResult, paid decimal.Decimal) {
	t.Helper()
	total := res.RemainingCredit
	for _, line := range res.Allocations {
		total = total.Add(line.Applied)
	}
	require.True(t, total.Equal(paid), "conservation: %s != %s", total, paid)
}

func TestAllocatePaymentPartial(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	jan := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeTuition, "500")
	feb := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.February), FeeTypeTuition, "500")
	svc := newTestService(repo, 100)

	res, err := svc.AllocatePayment(ctx, testCenter, 10, amount("700"), 900)
	require.NoError(t, err)
	require.Len(t, res.Allocations, 2)
	require.Equal(t, jan.ID, res.Allocations[0].FeeID)
	require.True(t, res.Allocations[0].Applied.Equal(amount("500")))
	require.Equal(t, feb.ID, res.Allocations[1].FeeID)
	require.True(t, res.Allocations[1].Applied.Equal(amount("200")))
	require.True(t, res.RemainingCredit.IsZero())
	requireConserved(t, res, amount("700"))

	require.Equal(t, FeeStatusPaid, repo.fees[jan.ID].Status)
	require.Equal(t, FeeStatusPartial, repo.fees[feb.ID].Status)
	require.True(t, repo.fees[feb.ID].AmountPaid.Equal(amount("200")))
	for _, ob := range repo.fees {
		require.True(t, ob.Valid())
	}
}

func TestAllocatePaymentOverpaymentCredit(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	jan := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeTuition, "500")
	feb := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.February), FeeTypeTuition, "500")
	svc := newTestService(repo, 100)

	res, err := svc.AllocatePayment(ctx, testCenter, 10, amount("1500"), 901)
	require.NoError(t, err)
	require.Equal(t, FeeStatusPaid, repo.fees[jan.ID].Status)
	require.Equal(t, FeeStatusPaid, repo.fees[feb.ID].Status)
	require.True(t, res.RemainingCredit.Equal(amount("500")))
	requireConserved(t, res, amount("1500"))
}

func TestAllocatePaymentOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	// Insert out of calendar order; the walk must still settle oldest first.
	mar := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.March), FeeTypeTuition, "400")
	jan := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeTuition, "400")
	feb := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.February), FeeTypeTuition, "400")
	svc := newTestService(repo, 100)

	res, err := svc.AllocatePayment(ctx, testCenter, 10, amount("800"), 902)
	require.NoError(t, err)
	require.Len(t, res.Allocations, 2)
	require.Equal(t, jan.ID, res.Allocations[0].FeeID)
	require.Equal(t, feb.ID, res.Allocations[1].FeeID)

	require.Equal(t, FeeStatusPaid, repo.fees[jan.ID].Status)
	require.Equal(t, FeeStatusPaid, repo.fees[feb.ID].Status)
	require.NotEqual(t, FeeStatusPaid, repo.fees[mar.ID].Status)
}

func TestAllocatePaymentNeverSkipsOlderDebt(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	jan := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeTuition, "500")
	feb := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.February), FeeTypeTuition, "500")
	svc := newTestService(repo, 100)

	_, err := svc.AllocatePayment(ctx, testCenter, 10, amount("300"), 903)
	require.NoError(t, err)
	require.Equal(t, FeeStatusPartial, repo.fees[jan.ID].Status)
	require.Equal(t, FeeStatusUnpaid, repo.fees[feb.ID].Status)
}

func TestAllocatePaymentNoOutstanding(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	svc := newTestService(repo, 100)

	res, err := svc.AllocatePayment(ctx, testCenter, 10, amount("250"), 904)
	require.NoError(t, err)
	require.Empty(t, res.Allocations)
	require.True(t, res.RemainingCredit.Equal(amount("250")))
}

func TestAllocatePaymentRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	svc := newTestService(repo, 100)

	_, err := svc.AllocatePayment(ctx, testCenter, 10, decimal.Zero, 905)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.AllocatePayment(ctx, testCenter, 10, amount("-5"), 905)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAllocatePaymentRegistrationSideEffect(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	reg := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeRegistration, "250")
	svc := newTestService(repo, 100)

	_, err := svc.AllocatePayment(ctx, testCenter, 10, amount("250"), 906)
	require.NoError(t, err)
	require.Equal(t, FeeStatusPaid, repo.fees[reg.ID].Status)

	paidAt, ok := repo.regPaid[10]
	require.True(t, ok, "registration fee paid flag not set")
	require.False(t, paidAt.IsZero())
}

func TestAllocatePaymentPartialRegistrationNoSideEffect(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeRegistration, "250")
	svc := newTestService(repo, 100)

	_, err := svc.AllocatePayment(ctx, testCenter, 10, amount("100"), 907)
	require.NoError(t, err)
	_, ok := repo.regPaid[10]
	require.False(t, ok)
}

func TestAllocatePaymentMidWalkFailureKeepsEarlierUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	jan := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeTuition, "500")
	feb := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.February), FeeTypeTuition, "500")
	repo.failApplyOnFee = feb.ID
	svc := newTestService(repo, 100)

	res, err := svc.AllocatePayment(ctx, testCenter, 10, amount("700"), 908)
	require.ErrorIs(t, err, errLedgerDown)
	// January stays settled; the partial breakdown is surfaced with the error.
	require.Equal(t, FeeStatusPaid, repo.fees[jan.ID].Status)
	require.Len(t, res.Allocations, 1)
	require.True(t, res.RemainingCredit.Equal(amount("200")))
}

func TestPayObligationCapsAtBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	fee := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.February), FeeTypeTuition, "400")
	svc := newTestService(repo, 100)

	applied, err := svc.PayObligation(ctx, testCenter, fee.ID, amount("1000"), 909)
	require.NoError(t, err)
	require.True(t, applied.Equal(amount("400")))
	require.Equal(t, FeeStatusPaid, repo.fees[fee.ID].Status)
	require.True(t, repo.fees[fee.ID].Valid())
}

func TestPayObligationIgnoresOrdering(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	jan := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeTuition, "500")
	feb := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.February), FeeTypeTuition, "500")
	svc := newTestService(repo, 100)

	// Targeting February directly leaves January untouched.
	applied, err := svc.PayObligation(ctx, testCenter, feb.ID, amount("500"), 910)
	require.NoError(t, err)
	require.True(t, applied.Equal(amount("500")))
	require.Equal(t, FeeStatusPaid, repo.fees[feb.ID].Status)
	require.Equal(t, FeeStatusUnpaid, repo.fees[jan.ID].Status)
}

func TestPayObligationAlreadySettled(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	fee := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeTuition, "500")
	fee.AmountPaid = amount("500")
	fee.Status = FeeStatusPaid
	svc := newTestService(repo, 100)

	applied, err := svc.PayObligation(ctx, testCenter, fee.ID, amount("100"), 911)
	require.NoError(t, err)
	require.True(t, applied.IsZero())
}

func TestPayObligationRegistrationSideEffect(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	reg := repo.addFee(testCenter, 10, FeeMonthOf(2025, time.January), FeeTypeRegistration, "250")
	svc := newTestService(repo, 100)

	_, err := svc.PayObligation(ctx, testCenter, reg.ID, amount("250"), 912)
	require.NoError(t, err)
	_, ok := repo.regPaid[10]
	require.True(t, ok)
}

func TestPayObligationUnknownFee(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedger()
	svc := newTestService(repo, 100)

	_, err := svc.PayObligation(ctx, testCenter, 999, amount("100"), 913)
	require.ErrorIs(t, err, ErrNotFound)
}
