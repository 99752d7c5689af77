package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/centerdesk/centerdesk/internal/platform/db"
)

// ErrAlreadyExists indicates a (student, fee_month, fee_type) uniqueness hit.
var ErrAlreadyExists = errors.New("billing: fee already exists")

// Repository provides PostgreSQL backed persistence for the billing ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListBillableStudents returns active students with their summed monthly fee
// across active subject enrollments.
func (r *Repository) ListBillableStudents(ctx context.Context, centerID int64) ([]BillableStudent, error) {
	query := `
		SELECT s.id, COALESCE(SUM(sub.monthly_fee), 0)
		FROM students s
		JOIN student_subjects ss ON ss.student_id = s.id AND ss.status = 'active'
		JOIN subjects sub ON sub.id = ss.subject_id
		WHERE s.center_id = $1 AND s.status = 'active'
		GROUP BY s.id
		ORDER BY s.id`

	rows, err := r.pool.Query(ctx, query, centerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []BillableStudent
	for rows.Next() {
		var st BillableStudent
		var total pgtype.Numeric
		if err := rows.Scan(&st.StudentID, &total); err != nil {
			return nil, err
		}
		st.MonthlyFee = numericToDecimal(total)
		students = append(students, st)
	}
	return students, rows.Err()
}

// ExistingFeeKeys loads the dedupe set for one generation year.
func (r *Repository) ExistingFeeKeys(ctx context.Context, centerID int64, year int, feeType FeeType) (map[FeeKey]struct{}, error) {
	query := `
		SELECT student_id, fee_month
		FROM student_fees
		WHERE center_id = $1 AND fee_type = $2 AND fee_month >= $3 AND fee_month < $4`

	rows, err := r.pool.Query(ctx, query, centerID, string(feeType),
		FeeMonthOf(year, time.January), FeeMonthOf(year+1, time.January))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[FeeKey]struct{})
	for rows.Next() {
		var studentID int64
		var feeMonth time.Time
		if err := rows.Scan(&studentID, &feeMonth); err != nil {
			return nil, err
		}
		keys[FeeKey{StudentID: studentID, FeeMonth: FeeMonthOf(feeMonth.Year(), feeMonth.Month())}] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertObligations persists one staged batch. The whole batch is sent in a
// single round trip; a uniqueness violation on any row aborts the batch.
func (r *Repository) InsertObligations(ctx context.Context, obligations []FeeObligation) error {
	if len(obligations) == 0 {
		return nil
	}

	const insert = `
		INSERT INTO student_fees (
			center_id, student_id, fee_month, fee_type,
			amount_due, amount_paid, status, due_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	batch := &pgx.Batch{}
	for _, ob := range obligations {
		batch.Queue(insert,
			ob.CenterID,
			ob.StudentID,
			ob.FeeMonth,
			string(ob.FeeType),
			ob.AmountDue.String(),
			ob.AmountPaid.String(),
			string(ob.Status),
			ob.DueAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range obligations {
		if _, err := results.Exec(); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.ConstraintName)
			}
			return err
		}
	}
	return nil
}

// GetObligation loads one obligation scoped to a center.
func (r *Repository) GetObligation(ctx context.Context, centerID, feeID int64) (*FeeObligation, error) {
	query := selectObligation + ` WHERE id = $1 AND center_id = $2`

	ob, err := scanObligation(r.pool.QueryRow(ctx, query, feeID, centerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ob, nil
}

// ListOutstandingByStudent returns unsettled obligations oldest fee month
// first. The id tie-break keeps the walk deterministic within a month.
func (r *Repository) ListOutstandingByStudent(ctx context.Context, centerID, studentID int64) ([]FeeObligation, error) {
	query := selectObligation + `
		WHERE center_id = $1 AND student_id = $2 AND status <> 'paid'
		ORDER BY fee_month ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, centerID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obligations []FeeObligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, *ob)
	}
	return obligations, rows.Err()
}

// ListByStudent returns every obligation for a student, newest month first.
func (r *Repository) ListByStudent(ctx context.Context, centerID, studentID int64) ([]FeeObligation, error) {
	query := selectObligation + `
		WHERE center_id = $1 AND student_id = $2
		ORDER BY fee_month DESC, fee_type ASC`

	rows, err := r.pool.Query(ctx, query, centerID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obligations []FeeObligation
	for rows.Next() {
		ob, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, *ob)
	}
	return obligations, rows.Err()
}

// ApplyToObligation increases amount_paid and recomputes status atomically,
// then records the allocation line, all in one transaction. The guard in the
// UPDATE rejects any application that would push amount_paid past amount_due
// instead of corrupting the row.
func (r *Repository) ApplyToObligation(ctx context.Context, feeID, paymentID int64, applied decimal.Decimal) (*FeeObligation, error) {
	const update = `
		UPDATE student_fees
		SET amount_paid = amount_paid + $2::numeric,
			status = CASE
				WHEN amount_paid + $2::numeric >= amount_due THEN 'paid'
				WHEN amount_paid + $2::numeric > 0 THEN 'partial'
				ELSE 'unpaid'
			END,
			updated_at = NOW()
		WHERE id = $1 AND amount_paid + $2::numeric <= amount_due
		RETURNING id, center_id, student_id, fee_month, fee_type,
			amount_due, amount_paid, status, due_at, created_at, updated_at`

	var updated *FeeObligation
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ob, err := scanObligation(tx.QueryRow(ctx, update, feeID, applied.String()))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOverApplied
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO payment_allocations (payment_id, fee_id, amount, created_at) VALUES ($1, $2, $3, NOW())`,
			paymentID, feeID, applied.String(),
		); err != nil {
			return err
		}
		updated = ob
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetRegistrationFeePaid flags the student record after a registration
// obligation settles.
func (r *Repository) SetRegistrationFeePaid(ctx context.Context, studentID int64, paidAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE students
		SET registration_fee_paid = TRUE, registration_fee_paid_date = $2, updated_at = NOW()
		WHERE id = $1`,
		studentID, paidAt)
	return err
}

const selectObligation = `
		SELECT id, center_id, student_id, fee_month, fee_type,
			amount_due, amount_paid, status, due_at, created_at, updated_at
		FROM student_fees`

func scanObligation(row pgx.Row) (*FeeObligation, error) {
	var ob FeeObligation
	var feeType, status string
	var due, paid pgtype.Numeric

	err := row.Scan(
		&ob.ID, &ob.CenterID, &ob.StudentID, &ob.FeeMonth, &feeType,
		&due, &paid, &status, &ob.DueAt, &ob.CreatedAt, &ob.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ob.FeeMonth = FeeMonthOf(ob.FeeMonth.Year(), ob.FeeMonth.Month())
	ob.FeeType = FeeType(feeType)
	ob.Status = FeeStatus(status)
	ob.AmountDue = numericToDecimal(due)
	ob.AmountPaid = numericToDecimal(paid)
	return &ob, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
