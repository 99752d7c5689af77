package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/centerdesk/centerdesk/internal/billing"
	"github.com/centerdesk/centerdesk/internal/observability"
	"github.com/centerdesk/centerdesk/internal/reporting"
)

type stubGenerator struct {
	lastCenter int64
	lastYear   int
	lastMonths []time.Month
	result     billing.GenerateResult
	err        error
}

func (g *stubGenerator) GenerateFees(ctx context.Context, centerID int64, year int, months []time.Month) (billing.GenerateResult, error) {
	g.lastCenter = centerID
	g.lastYear = year
	g.lastMonths = months
	return g.result, g.err
}

type stubOverdueSource struct {
	centers   []int64
	summaries map[int64]*reporting.OutstandingSummary
}

func (s *stubOverdueSource) ListCenterIDs(ctx context.Context) ([]int64, error) {
	return s.centers, nil
}

func (s *stubOverdueSource) OutstandingSummary(ctx context.Context, centerID int64, asOf time.Time) (*reporting.OutstandingSummary, error) {
	return s.summaries[centerID], nil
}

func TestGenerateFeesHandlerRunsGenerator(t *testing.T) {
	gen := &stubGenerator{result: billing.GenerateResult{StudentsProcessed: 2, FeesGenerated: 4}}
	handler := NewGenerateFeesHandler(gen, observability.NewMetrics(), slog.Default())

	task, err := NewGenerateFeesTask(GenerateFeesPayload{CenterID: 1, Year: 2026, Months: []int{1, 2}})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, int64(1), gen.lastCenter)
	require.Equal(t, 2026, gen.lastYear)
	require.Equal(t, []time.Month{time.January, time.February}, gen.lastMonths)
}

func TestGenerateFeesHandlerSkipsMalformedPayload(t *testing.T) {
	gen := &stubGenerator{}
	handler := NewGenerateFeesHandler(gen, observability.NewMetrics(), slog.Default())

	err := handler(context.Background(), asynq.NewTask(TaskTypeGenerateFees, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, gen.lastCenter)
}

func TestGenerateFeesHandlerRejectsMonthOutOfRange(t *testing.T) {
	gen := &stubGenerator{}
	handler := NewGenerateFeesHandler(gen, observability.NewMetrics(), slog.Default())

	task, err := NewGenerateFeesTask(GenerateFeesPayload{CenterID: 1, Year: 2026, Months: []int{13}})
	require.NoError(t, err)

	require.ErrorIs(t, handler(context.Background(), task), asynq.SkipRetry)
}

func TestOverdueScanWalksAllCenters(t *testing.T) {
	source := &stubOverdueSource{
		centers: []int64{1, 2},
		summaries: map[int64]*reporting.OutstandingSummary{
			1: {OverdueCount: 3, OverdueAmount: decimal.RequireFromString("450")},
			2: {OverdueCount: 0, OverdueAmount: decimal.Zero},
		},
	}
	handler := NewOverdueScanHandler(source, observability.NewMetrics(), slog.Default())

	require.NoError(t, handler(context.Background(), NewOverdueScanTask()))
}
