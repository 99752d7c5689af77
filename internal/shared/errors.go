package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrMonthNotBillable occurs when a month is outside the center's payment months.
	ErrMonthNotBillable = errors.New("month not in configured payment months")
)

// UserSafeMessage returns a message suitable for end users, hiding internals.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record could not be found."
	case errors.Is(err, ErrDuplicate):
		return "A matching record already exists."
	case errors.Is(err, ErrMonthNotBillable):
		return "One of the selected months is not billable for this center."
	case errors.Is(err, ErrValidation):
		return "Some of the submitted values are invalid."
	default:
		return "Something went wrong. Please try again."
	}
}
