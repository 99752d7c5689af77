package subjects

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/centerdesk/centerdesk/internal/shared"
)

type memorySubjectRepo struct {
	subjects    map[int64]*Subject
	enrollments map[[2]int64]*Enrollment
	nextID      int64
}

func newMemorySubjectRepo() *memorySubjectRepo {
	return &memorySubjectRepo{
		subjects:    make(map[int64]*Subject),
		enrollments: make(map[[2]int64]*Enrollment),
	}
}

func (r *memorySubjectRepo) CreateSubject(ctx context.Context, centerID int64, input SubjectInput) (*Subject, error) {
	r.nextID++
	sub := &Subject{ID: r.nextID, CenterID: centerID, Name: input.Name, MonthlyFee: input.MonthlyFee}
	r.subjects[sub.ID] = sub
	return sub, nil
}

func (r *memorySubjectRepo) GetSubject(ctx context.Context, centerID, id int64) (*Subject, error) {
	sub, ok := r.subjects[id]
	if !ok || sub.CenterID != centerID {
		return nil, ErrNotFound
	}
	return sub, nil
}

func (r *memorySubjectRepo) ListSubjects(ctx context.Context, centerID int64) ([]Subject, error) {
	var out []Subject
	for _, sub := range r.subjects {
		if sub.CenterID == centerID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *memorySubjectRepo) Enroll(ctx context.Context, centerID, studentID, subjectID int64) (*Enrollment, error) {
	key := [2]int64{studentID, subjectID}
	if enr, ok := r.enrollments[key]; ok {
		if enr.Status == EnrollmentActive {
			return nil, ErrAlreadyEnrolled
		}
		enr.Status = EnrollmentActive
		return enr, nil
	}
	r.nextID++
	enr := &Enrollment{ID: r.nextID, StudentID: studentID, SubjectID: subjectID, Status: EnrollmentActive}
	r.enrollments[key] = enr
	return enr, nil
}

func (r *memorySubjectRepo) Drop(ctx context.Context, centerID, studentID, subjectID int64) error {
	enr, ok := r.enrollments[[2]int64{studentID, subjectID}]
	if !ok || enr.Status != EnrollmentActive {
		return ErrNotFound
	}
	enr.Status = EnrollmentDropped
	return nil
}

func (r *memorySubjectRepo) MonthlyTotal(ctx context.Context, centerID, studentID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for key, enr := range r.enrollments {
		if key[0] != studentID || enr.Status != EnrollmentActive {
			continue
		}
		if sub, ok := r.subjects[key[1]]; ok {
			total = total.Add(sub.MonthlyFee)
		}
	}
	return total, nil
}

func TestCreateSubjectRejectsNegativeFee(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemorySubjectRepo())

	_, err := svc.CreateSubject(ctx, 1, SubjectInput{
		Name:       "Mathematics",
		MonthlyFee: decimal.RequireFromString("-10"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMonthlyTotalSumsActiveEnrollments(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySubjectRepo()
	svc := NewService(repo)

	math, err := svc.CreateSubject(ctx, 1, SubjectInput{Name: "Mathematics", MonthlyFee: decimal.RequireFromString("300")})
	require.NoError(t, err)
	science, err := svc.CreateSubject(ctx, 1, SubjectInput{Name: "Science", MonthlyFee: decimal.RequireFromString("200")})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, 1, 10, math.ID)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, 1, 10, science.ID)
	require.NoError(t, err)

	total, err := svc.MonthlyTotal(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("500")))

	// Dropping a subject removes it from the total going forward.
	require.NoError(t, svc.Drop(ctx, 1, 10, science.ID))
	total, err = svc.MonthlyTotal(ctx, 1, 10)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("300")))
}

func TestEnrollTwiceFails(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySubjectRepo()
	svc := NewService(repo)

	math, err := svc.CreateSubject(ctx, 1, SubjectInput{Name: "Mathematics", MonthlyFee: decimal.RequireFromString("300")})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, 1, 10, math.ID)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, 1, 10, math.ID)
	require.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestReEnrollAfterDrop(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySubjectRepo()
	svc := NewService(repo)

	math, err := svc.CreateSubject(ctx, 1, SubjectInput{Name: "Mathematics", MonthlyFee: decimal.RequireFromString("300")})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, 1, 10, math.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Drop(ctx, 1, 10, math.ID))

	enr, err := svc.Enroll(ctx, 1, 10, math.ID)
	require.NoError(t, err)
	require.Equal(t, EnrollmentActive, enr.Status)
}
