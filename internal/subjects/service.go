package subjects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/centerdesk/centerdesk/internal/shared"
)

var (
	// ErrNotFound indicates the subject or enrollment does not exist.
	ErrNotFound = errors.New("subjects: not found")
	// ErrAlreadyEnrolled indicates a duplicate active enrollment.
	ErrAlreadyEnrolled = errors.New("subjects: student already enrolled")
)

// RepositoryPort defines data access methods for subjects and enrollments.
type RepositoryPort interface {
	CreateSubject(ctx context.Context, centerID int64, input SubjectInput) (*Subject, error)
	GetSubject(ctx context.Context, centerID, id int64) (*Subject, error)
	ListSubjects(ctx context.Context, centerID int64) ([]Subject, error)
	Enroll(ctx context.Context, centerID, studentID, subjectID int64) (*Enrollment, error)
	Drop(ctx context.Context, centerID, studentID, subjectID int64) error
	MonthlyTotal(ctx context.Context, centerID, studentID int64) (decimal.Decimal, error)
}

// Service handles subject and enrollment business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateSubject registers a new subject. The monthly fee may be zero for
// non-billed subjects; negative fees are rejected.
func (s *Service) CreateSubject(ctx context.Context, centerID int64, input SubjectInput) (*Subject, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, fmt.Errorf("%w: subject name required", shared.ErrValidation)
	}
	if input.MonthlyFee.IsNegative() {
		return nil, fmt.Errorf("%w: monthly fee cannot be negative", shared.ErrValidation)
	}
	return s.repo.CreateSubject(ctx, centerID, input)
}

// GetSubject returns one subject.
func (s *Service) GetSubject(ctx context.Context, centerID, id int64) (*Subject, error) {
	return s.repo.GetSubject(ctx, centerID, id)
}

// ListSubjects returns all subjects of a center.
func (s *Service) ListSubjects(ctx context.Context, centerID int64) ([]Subject, error) {
	return s.repo.ListSubjects(ctx, centerID)
}

// Enroll creates an active enrollment. Changing enrollments does not adjust
// fee obligations already generated; amounts are frozen at generation time.
func (s *Service) Enroll(ctx context.Context, centerID, studentID, subjectID int64) (*Enrollment, error) {
	if studentID <= 0 || subjectID <= 0 {
		return nil, fmt.Errorf("%w: student and subject required", shared.ErrValidation)
	}
	return s.repo.Enroll(ctx, centerID, studentID, subjectID)
}

// Drop marks an enrollment as dropped.
func (s *Service) Drop(ctx context.Context, centerID, studentID, subjectID int64) error {
	return s.repo.Drop(ctx, centerID, studentID, subjectID)
}

// MonthlyTotal sums the monthly fees of a student's active enrollments.
func (s *Service) MonthlyTotal(ctx context.Context, centerID, studentID int64) (decimal.Decimal, error) {
	return s.repo.MonthlyTotal(ctx, centerID, studentID)
}
