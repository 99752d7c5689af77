package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method enumerates accepted payment methods.
type Method string

const (
	MethodCash Method = "cash"
	MethodCard Method = "card"
	MethodEFT  Method = "eft"
)

// ValidMethod reports whether m is one of the accepted payment methods.
func ValidMethod(m Method) bool {
	switch m {
	case MethodCash, MethodCard, MethodEFT:
		return true
	}
	return false
}

// Payment is one captured payment from a student or guardian. Reference is a
// center-facing identifier printed on receipts.
type Payment struct {
	ID             int64           `json:"id"`
	CenterID       int64           `json:"center_id"`
	StudentID      int64           `json:"student_id"`
	Reference      uuid.UUID       `json:"reference"`
	Amount         decimal.Decimal `json:"amount"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	Method         Method          `json:"method"`
	Note           string          `json:"note,omitempty"`
	ReceivedAt     time.Time       `json:"received_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Refundable returns the amount still eligible for refund.
func (p Payment) Refundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}
