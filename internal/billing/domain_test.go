package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	due := decimal.RequireFromString("500")

	require.Equal(t, FeeStatusUnpaid, StatusFor(decimal.Zero, due))
	require.Equal(t, FeeStatusPartial, StatusFor(decimal.RequireFromString("0.01"), due))
	require.Equal(t, FeeStatusPartial, StatusFor(decimal.RequireFromString("499.99"), due))
	require.Equal(t, FeeStatusPaid, StatusFor(due, due))
	require.Equal(t, FeeStatusPaid, StatusFor(decimal.RequireFromString("600"), due))
}

func TestObligationBalanceAndValid(t *testing.T) {
	ob := FeeObligation{
		AmountDue:  decimal.RequireFromString("500"),
		AmountPaid: decimal.RequireFromString("200"),
		Status:     FeeStatusPartial,
	}
	require.True(t, ob.Balance().Equal(decimal.RequireFromString("300")))
	require.True(t, ob.Valid())

	ob.Status = FeeStatusPaid
	require.False(t, ob.Valid(), "status contradicting amounts must be invalid")

	ob.Status = FeeStatusPartial
	ob.AmountPaid = decimal.RequireFromString("600")
	require.False(t, ob.Valid(), "amount_paid above amount_due must be invalid")

	ob.AmountPaid = decimal.RequireFromString("-1")
	require.False(t, ob.Valid(), "negative amount_paid must be invalid")
}

func TestFeeMonthHelpers(t *testing.T) {
	feeMonth := FeeMonthOf(2025, time.September)
	require.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), feeMonth)
	require.Equal(t, time.Date(2025, time.September, 7, 0, 0, 0, 0, time.UTC), DueDateFor(feeMonth))
}
