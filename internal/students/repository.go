package students

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/centerdesk/centerdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence for students.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts an active student.
func (r *Repository) Create(ctx context.Context, centerID int64, input StudentInput) (*Student, error) {
	query := `
		INSERT INTO students (center_id, first_name, last_name, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'active', NOW(), NOW())
		RETURNING id, created_at, updated_at`

	st := Student{
		CenterID:  centerID,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Status:    StatusActive,
	}
	err := r.pool.QueryRow(ctx, query, centerID, input.FirstName, input.LastName, input.Phone).
		Scan(&st.ID, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Get retrieves one student by ID within a center.
func (r *Repository) Get(ctx context.Context, centerID, id int64) (*Student, error) {
	query := `
		SELECT id, center_id, first_name, last_name, COALESCE(phone, ''), status,
			registration_fee_paid, registration_fee_paid_date, created_at, updated_at
		FROM students
		WHERE id = $1 AND center_id = $2`

	st, err := scanStudent(r.pool.QueryRow(ctx, query, id, centerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// List returns a page of students ordered by name.
func (r *Repository) List(ctx context.Context, centerID int64, page shared.Pagination) ([]Student, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE center_id = $1`, centerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, center_id, first_name, last_name, COALESCE(phone, ''), status,
			registration_fee_paid, registration_fee_paid_date, created_at, updated_at
		FROM students
		WHERE center_id = $1
		ORDER BY last_name, first_name, id
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, centerID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *st)
	}
	return out, total, rows.Err()
}

// SetStatus updates the lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, centerID, id int64, status StudentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE students SET status = $3, updated_at = NOW()
		WHERE id = $1 AND center_id = $2`,
		id, centerID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanStudent(row pgx.Row) (*Student, error) {
	var st Student
	var status string
	var regPaidDate pgtype.Timestamptz

	err := row.Scan(
		&st.ID, &st.CenterID, &st.FirstName, &st.LastName, &st.Phone, &status,
		&st.RegistrationFeePaid, &regPaidDate, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	st.Status = StudentStatus(status)
	if regPaidDate.Valid {
		t := regPaidDate.Time.UTC()
		st.RegistrationFeePaidDate = &t
	}
	return &st, nil
}
