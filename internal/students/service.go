package students

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/centerdesk/centerdesk/internal/shared"
)

// ErrNotFound indicates the student does not exist in the center.
var ErrNotFound = errors.New("students: not found")

// RepositoryPort defines data access methods for students.
type RepositoryPort interface {
	Create(ctx context.Context, centerID int64, input StudentInput) (*Student, error)
	Get(ctx context.Context, centerID, id int64) (*Student, error)
	List(ctx context.Context, centerID int64, page shared.Pagination) ([]Student, int, error)
	SetStatus(ctx context.Context, centerID, id int64, status StudentStatus) error
}

// Service handles student business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers a new active student.
func (s *Service) Create(ctx context.Context, centerID int64, input StudentInput) (*Student, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if input.FirstName == "" || input.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name required", shared.ErrValidation)
	}
	return s.repo.Create(ctx, centerID, input)
}

// Get returns one student.
func (s *Service) Get(ctx context.Context, centerID, id int64) (*Student, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid student ID", shared.ErrValidation)
	}
	return s.repo.Get(ctx, centerID, id)
}

// List returns a page of students with the total count.
func (s *Service) List(ctx context.Context, centerID int64, page shared.Pagination) ([]Student, int, error) {
	return s.repo.List(ctx, centerID, page)
}

// Deactivate removes a student from billing eligibility without deleting the
// record. Existing obligations are untouched.
func (s *Service) Deactivate(ctx context.Context, centerID, id int64) error {
	return s.repo.SetStatus(ctx, centerID, id, StatusInactive)
}

// Activate returns a student to billing eligibility.
func (s *Service) Activate(ctx context.Context, centerID, id int64) error {
	return s.repo.SetStatus(ctx, centerID, id, StatusActive)
}
