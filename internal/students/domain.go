package students

import "time"

// StudentStatus enumerates student lifecycle states.
type StudentStatus string

const (
	StatusActive   StudentStatus = "active"
	StatusInactive StudentStatus = "inactive"
)

// Student is one enrolled learner, scoped to a center.
type Student struct {
	ID        int64         `json:"id"`
	CenterID  int64         `json:"center_id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Phone     string        `json:"phone,omitempty"`
	Status    StudentStatus `json:"status"`

	// Set by the billing engine when a registration fee settles.
	RegistrationFeePaid     bool       `json:"registration_fee_paid"`
	RegistrationFeePaidDate *time.Time `json:"registration_fee_paid_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StudentInput carries fields for creating or updating a student.
type StudentInput struct {
	FirstName string `json:"first_name" validate:"required,max=120"`
	LastName  string `json:"last_name" validate:"required,max=120"`
	Phone     string `json:"phone" validate:"max=32"`
}
