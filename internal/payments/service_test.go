package payments

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/centerdesk/centerdesk/internal/billing"
)

type memoryPaymentRepo struct {
	rows   map[int64]*Payment
	nextID int64
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{rows: make(map[int64]*Payment)}
}

func (r *memoryPaymentRepo) Create(ctx context.Context, p Payment) (*Payment, error) {
	r.nextID++
	p.ID = r.nextID
	r.rows[p.ID] = &p
	return &p, nil
}

func (r *memoryPaymentRepo) Get(ctx context.Context, centerID, paymentID int64) (*Payment, error) {
	p, ok := r.rows[paymentID]
	if !ok || p.CenterID != centerID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPaymentRepo) ListByStudent(ctx context.Context, centerID, studentID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.rows {
		if p.CenterID == centerID && p.StudentID == studentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryPaymentRepo) AddRefund(ctx context.Context, centerID, paymentID int64, amount decimal.Decimal) (*Payment, error) {
	p, ok := r.rows[paymentID]
	if !ok || p.CenterID != centerID {
		return nil, ErrNotFound
	}
	next := p.RefundedAmount.Add(amount)
	if next.GreaterThan(p.Amount) {
		return nil, ErrRefundExceeds
	}
	p.RefundedAmount = next
	cp := *p
	return &cp, nil
}

// stubAllocator records the allocation call and returns a canned result.
type stubAllocator struct {
	lastPaymentID int64
	lastAmount    decimal.Decimal
	result        billing.AllocationResult
	err           error
}

func (a *stubAllocator) AllocatePayment(ctx context.Context, centerID, studentID int64, amount decimal.Decimal, paymentID int64) (billing.AllocationResult, error) {
	a.lastPaymentID = paymentID
	a.lastAmount = amount
	return a.result, a.err
}

func newTestPaymentService(repo RepositoryPort, alloc AllocatorPort) *Service {
	return NewService(repo, alloc, slog.Default())
}

func TestRecordStoresAndAllocates(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPaymentRepo()
	alloc := &stubAllocator{result: billing.AllocationResult{RemainingCredit: decimal.Zero}}
	svc := newTestPaymentService(repo, alloc)

	res, err := svc.Record(ctx, 1, RecordInput{
		StudentID: 10,
		Amount:    decimal.RequireFromString("750"),
		Method:    MethodCash,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	require.NotZero(t, res.Payment.ID)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", res.Payment.Reference.String())

	// The allocator sees the stored payment's ID and the full amount.
	require.Equal(t, res.Payment.ID, alloc.lastPaymentID)
	require.True(t, alloc.lastAmount.Equal(decimal.RequireFromString("750")))
}

func TestRecordRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	svc := newTestPaymentService(newMemoryPaymentRepo(), &stubAllocator{})

	_, err := svc.Record(ctx, 1, RecordInput{StudentID: 10, Amount: decimal.Zero, Method: MethodCash})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Record(ctx, 1, RecordInput{
		StudentID: 10, Amount: decimal.RequireFromString("-5"), Method: MethodCash,
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordRejectsUnknownMethod(t *testing.T) {
	ctx := context.Background()
	svc := newTestPaymentService(newMemoryPaymentRepo(), &stubAllocator{})

	_, err := svc.Record(ctx, 1, RecordInput{
		StudentID: 10, Amount: decimal.RequireFromString("100"), Method: Method("bitcoin"),
	})
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestRecordKeepsPaymentWhenAllocationFails(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPaymentRepo()
	allocErr := errors.New("ledger down")
	alloc := &stubAllocator{
		result: billing.AllocationResult{RemainingCredit: decimal.RequireFromString("100")},
		err:    allocErr,
	}
	svc := newTestPaymentService(repo, alloc)

	res, err := svc.Record(ctx, 1, RecordInput{
		StudentID: 10, Amount: decimal.RequireFromString("100"), Method: MethodEFT,
	})
	require.ErrorIs(t, err, allocErr)
	require.NotNil(t, res)
	require.NotNil(t, res.Payment)

	// The captured payment row survives the failed walk.
	stored, err := repo.Get(ctx, 1, res.Payment.ID)
	require.NoError(t, err)
	require.True(t, stored.Amount.Equal(decimal.RequireFromString("100")))
}

func TestRefundWithinRefundable(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPaymentRepo()
	svc := newTestPaymentService(repo, &stubAllocator{})

	res, err := svc.Record(ctx, 1, RecordInput{
		StudentID: 10, Amount: decimal.RequireFromString("200"), Method: MethodCard,
	})
	require.NoError(t, err)

	p, err := svc.Refund(ctx, 1, res.Payment.ID, decimal.RequireFromString("80"))
	require.NoError(t, err)
	require.True(t, p.RefundedAmount.Equal(decimal.RequireFromString("80")))
	require.True(t, p.Refundable().Equal(decimal.RequireFromString("120")))
}

func TestRefundExceedingRefundableFails(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryPaymentRepo()
	svc := newTestPaymentService(repo, &stubAllocator{})

	res, err := svc.Record(ctx, 1, RecordInput{
		StudentID: 10, Amount: decimal.RequireFromString("200"), Method: MethodCard,
	})
	require.NoError(t, err)

	_, err = svc.Refund(ctx, 1, res.Payment.ID, decimal.RequireFromString("150"))
	require.NoError(t, err)

	// Only 50 remains refundable.
	_, err = svc.Refund(ctx, 1, res.Payment.ID, decimal.RequireFromString("60"))
	require.ErrorIs(t, err, ErrRefundExceeds)
}

func TestRefundUnknownPayment(t *testing.T) {
	ctx := context.Background()
	svc := newTestPaymentService(newMemoryPaymentRepo(), &stubAllocator{})

	_, err := svc.Refund(ctx, 1, 99, decimal.RequireFromString("10"))
	require.ErrorIs(t, err, ErrNotFound)
}
