package subjects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence for subjects.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSubject inserts a subject.
func (r *Repository) CreateSubject(ctx context.Context, centerID int64, input SubjectInput) (*Subject, error) {
	query := `
		INSERT INTO subjects (center_id, name, monthly_fee, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	sub := Subject{CenterID: centerID, Name: input.Name, MonthlyFee: input.MonthlyFee}
	err := r.pool.QueryRow(ctx, query, centerID, input.Name, input.MonthlyFee.String()).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubject retrieves one subject within a center.
func (r *Repository) GetSubject(ctx context.Context, centerID, id int64) (*Subject, error) {
	query := `
		SELECT id, center_id, name, monthly_fee, created_at, updated_at
		FROM subjects
		WHERE id = $1 AND center_id = $2`

	var sub Subject
	var fee pgtype.Numeric
	err := r.pool.QueryRow(ctx, query, id, centerID).
		Scan(&sub.ID, &sub.CenterID, &sub.Name, &fee, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.MonthlyFee = numericToDecimal(fee)
	return &sub, nil
}

// ListSubjects returns all subjects of a center ordered by name.
func (r *Repository) ListSubjects(ctx context.Context, centerID int64) ([]Subject, error) {
	query := `
		SELECT id, center_id, name, monthly_fee, created_at, updated_at
		FROM subjects
		WHERE center_id = $1
		ORDER BY name, id`

	rows, err := r.pool.Query(ctx, query, centerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subject
	for rows.Next() {
		var sub Subject
		var fee pgtype.Numeric
		if err := rows.Scan(&sub.ID, &sub.CenterID, &sub.Name, &fee, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		sub.MonthlyFee = numericToDecimal(fee)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Enroll creates an active enrollment. Re-enrolling after a drop reactivates
// the existing row; a duplicate active enrollment maps to ErrAlreadyEnrolled.
func (r *Repository) Enroll(ctx context.Context, centerID, studentID, subjectID int64) (*Enrollment, error) {
	query := `
		INSERT INTO student_subjects (student_id, subject_id, status, created_at, updated_at)
		SELECT s.id, sub.id, 'active', NOW(), NOW()
		FROM students s, subjects sub
		WHERE s.id = $1 AND s.center_id = $3 AND sub.id = $2 AND sub.center_id = $3
		ON CONFLICT (student_id, subject_id)
			DO UPDATE SET status = 'active', updated_at = NOW()
			WHERE student_subjects.status = 'dropped'
		RETURNING id, created_at, updated_at`

	enr := Enrollment{StudentID: studentID, SubjectID: subjectID, Status: EnrollmentActive}
	err := r.pool.QueryRow(ctx, query, studentID, subjectID, centerID).
		Scan(&enr.ID, &enr.CreatedAt, &enr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// The conflict clause did not fire an update: already active.
		return nil, ErrAlreadyEnrolled
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}
	return &enr, nil
}

// Drop marks an enrollment as dropped.
func (r *Repository) Drop(ctx context.Context, centerID, studentID, subjectID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE student_subjects ss
		SET status = 'dropped', updated_at = NOW()
		FROM students s
		WHERE ss.student_id = s.id AND s.center_id = $3
			AND ss.student_id = $1 AND ss.subject_id = $2 AND ss.status = 'active'`,
		studentID, subjectID, centerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MonthlyTotal sums monthly fees over a student's active enrollments.
func (r *Repository) MonthlyTotal(ctx context.Context, centerID, studentID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(sub.monthly_fee), 0)
		FROM student_subjects ss
		JOIN subjects sub ON sub.id = ss.subject_id AND sub.center_id = $2
		WHERE ss.student_id = $1 AND ss.status = 'active'`

	var total pgtype.Numeric
	if err := r.pool.QueryRow(ctx, query, studentID, centerID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(total), nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
