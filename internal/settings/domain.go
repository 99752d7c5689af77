package settings

import "time"

// CenterSettings holds per-center billing configuration.
type CenterSettings struct {
	CenterID int64 `json:"center_id"`
	// PaymentMonths is the allow-list of months in which tuition is billed,
	// e.g. excluding school-holiday months.
	PaymentMonths []time.Month `json:"payment_months"`
	Currency      string       `json:"currency"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// DefaultPaymentMonths bills every month except December.
func DefaultPaymentMonths() []time.Month {
	months := make([]time.Month, 0, 11)
	for m := time.January; m <= time.November; m++ {
		months = append(months, m)
	}
	return months
}
