package subjects

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subject is a billable course offered by a center.
type Subject struct {
	ID         int64           `json:"id"`
	CenterID   int64           `json:"center_id"`
	Name       string          `json:"name"`
	MonthlyFee decimal.Decimal `json:"monthly_fee"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SubjectInput carries fields for creating a subject.
type SubjectInput struct {
	Name       string          `json:"name" validate:"required,max=120"`
	MonthlyFee decimal.Decimal `json:"monthly_fee" validate:"required"`
}

// EnrollmentStatus enumerates enrollment states.
type EnrollmentStatus string

const (
	EnrollmentActive  EnrollmentStatus = "active"
	EnrollmentDropped EnrollmentStatus = "dropped"
)

// Enrollment links a student to a subject. Only active enrollments count
// towards the student's monthly tuition total.
type Enrollment struct {
	ID        int64            `json:"id"`
	StudentID int64            `json:"student_id"`
	SubjectID int64            `json:"subject_id"`
	Status    EnrollmentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
