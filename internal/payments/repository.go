package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectPayment = `
	SELECT id, center_id, student_id, reference, amount, refunded_amount,
	       method, note, received_at, created_at
	FROM payments`

// Create inserts a payment row and returns it with generated fields.
func (r *Repository) Create(ctx context.Context, p Payment) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payments
			(center_id, student_id, reference, amount, refunded_amount, method, note, received_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
		RETURNING id, created_at`,
		p.CenterID, p.StudentID, p.Reference, p.Amount.String(),
		string(p.Method), p.Note, p.ReceivedAt)

	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Get loads a payment scoped to a center.
func (r *Repository) Get(ctx context.Context, centerID, paymentID int64) (*Payment, error) {
	row := r.pool.QueryRow(ctx, selectPayment+` WHERE center_id = $1 AND id = $2`,
		centerID, paymentID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListByStudent returns a student's payments, newest first.
func (r *Repository) ListByStudent(ctx context.Context, centerID, studentID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx,
		selectPayment+` WHERE center_id = $1 AND student_id = $2 ORDER BY received_at DESC, id DESC`,
		centerID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// AddRefund bumps refunded_amount under a guard that keeps the refunded total
// within the payment amount. No row matching the guard maps to
// ErrRefundExceeds.
func (r *Repository) AddRefund(ctx context.Context, centerID, paymentID int64, amount decimal.Decimal) (*Payment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE payments
		SET refunded_amount = refunded_amount + $3
		WHERE center_id = $1 AND id = $2
		  AND refunded_amount + $3 <= amount
		RETURNING id, center_id, student_id, reference, amount, refunded_amount,
		          method, note, received_at, created_at`,
		centerID, paymentID, amount.String())

	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRefundExceeds
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var amount, refunded pgtype.Numeric
	var method string
	if err := row.Scan(&p.ID, &p.CenterID, &p.StudentID, &p.Reference,
		&amount, &refunded, &method, &p.Note, &p.ReceivedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Amount = numericToDecimal(amount)
	p.RefundedAmount = numericToDecimal(refunded)
	p.Method = Method(method)
	return &p, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
