package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the aggregate report queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OutstandingSummary aggregates the fee ledger for one center.
func (r *Repository) OutstandingSummary(ctx context.Context, centerID int64, asOf time.Time) (*OutstandingSummary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'unpaid'),
			COUNT(*) FILTER (WHERE status = 'partial'),
			COUNT(*) FILTER (WHERE status = 'paid'),
			COALESCE(SUM(amount_due), 0),
			COALESCE(SUM(amount_paid), 0),
			COUNT(*) FILTER (WHERE status <> 'paid' AND due_at < $2),
			COALESCE(SUM(amount_due - amount_paid) FILTER (WHERE status <> 'paid' AND due_at < $2), 0)
		FROM student_fees
		WHERE center_id = $1`

	summary := OutstandingSummary{CenterID: centerID}
	var due, paid, overdue pgtype.Numeric
	err := r.pool.QueryRow(ctx, query, centerID, asOf).Scan(
		&summary.UnpaidCount, &summary.PartialCount, &summary.PaidCount,
		&due, &paid, &summary.OverdueCount, &overdue)
	if err != nil {
		return nil, err
	}

	summary.TotalDue = numericToDecimal(due)
	summary.TotalPaid = numericToDecimal(paid)
	summary.TotalOutstanding = summary.TotalDue.Sub(summary.TotalPaid)
	summary.OverdueAmount = numericToDecimal(overdue)
	return &summary, nil
}

// Collections returns per-month totals of captured payments net of refunds.
// The range is half-open: from inclusive, to exclusive.
func (r *Repository) Collections(ctx context.Context, centerID int64, from, to time.Time) ([]CollectionRow, error) {
	query := `
		SELECT
			date_trunc('month', received_at AT TIME ZONE 'UTC') AS month,
			COUNT(*),
			COALESCE(SUM(amount - refunded_amount), 0)
		FROM payments
		WHERE center_id = $1 AND received_at >= $2 AND received_at < $3
		GROUP BY month
		ORDER BY month`

	rows, err := r.pool.Query(ctx, query, centerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CollectionRow
	for rows.Next() {
		var row CollectionRow
		var collected pgtype.Numeric
		if err := rows.Scan(&row.Month, &row.Payments, &collected); err != nil {
			return nil, err
		}
		row.Collected = numericToDecimal(collected)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListCenterIDs returns every center holding at least one fee obligation.
// The overdue scan iterates this list.
func (r *Repository) ListCenterIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT center_id FROM student_fees ORDER BY center_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
