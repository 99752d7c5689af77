package reporting

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// OutstandingSummary aggregates the center's fee ledger by settlement state.
type OutstandingSummary struct {
	CenterID         int64           `json:"center_id"`
	UnpaidCount      int             `json:"unpaid_count"`
	PartialCount     int             `json:"partial_count"`
	PaidCount        int             `json:"paid_count"`
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	OverdueCount     int             `json:"overdue_count"`
	OverdueAmount    decimal.Decimal `json:"overdue_amount"`
	Currency         string          `json:"currency"`
	DisplayTotal     string          `json:"display_total"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// CollectionRow is one month of collected payments, net of refunds.
type CollectionRow struct {
	Month     time.Time       `json:"month"`
	Payments  int             `json:"payments"`
	Collected decimal.Decimal `json:"collected"`
}

// CollectionReport covers a month range for one center.
type CollectionReport struct {
	CenterID int64           `json:"center_id"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Rows     []CollectionRow `json:"rows"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// FormatAmount renders an amount with the center's currency symbol. Unknown
// currency codes fall back to a plain two-decimal string.
func FormatAmount(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2)
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", currency.Symbol(unit.Amount(amount.InexactFloat64())))
}
