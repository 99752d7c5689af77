package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/centerdesk/centerdesk/internal/billing"
	"github.com/centerdesk/centerdesk/internal/observability"
	"github.com/centerdesk/centerdesk/internal/reporting"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeGenerateFees runs monthly fee generation for one center.
	TaskTypeGenerateFees = "billing:generate"
	// TaskTypeOverdueScan refreshes overdue-fee gauges across all centers.
	TaskTypeOverdueScan = "billing:overdue_scan"
)

// GenerateFeesPayload describes one generation run.
type GenerateFeesPayload struct {
	CenterID int64 `json:"center_id"`
	Year     int   `json:"year"`
	Months   []int `json:"months"`
}

// NewGenerateFeesTask constructs an Asynq task.
func NewGenerateFeesTask(payload GenerateFeesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateFees, data), nil
}

// NewOverdueScanTask constructs the periodic overdue scan task.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueScan, nil)
}

// FeeGenerator runs the billing generator.
type FeeGenerator interface {
	GenerateFees(ctx context.Context, centerID int64, year int, months []time.Month) (billing.GenerateResult, error)
}

// OverdueSource lists centers and summarises their ledgers.
type OverdueSource interface {
	ListCenterIDs(ctx context.Context) ([]int64, error)
	OutstandingSummary(ctx context.Context, centerID int64, asOf time.Time) (*reporting.OutstandingSummary, error)
}

// NewGenerateFeesHandler builds the handler for TaskTypeGenerateFees.
func NewGenerateFeesHandler(generator FeeGenerator, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload GenerateFeesPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.CenterID <= 0 || payload.Year == 0 {
			return asynq.SkipRetry
		}

		months := make([]time.Month, 0, len(payload.Months))
		for _, m := range payload.Months {
			if m < 1 || m > 12 {
				return asynq.SkipRetry
			}
			months = append(months, time.Month(m))
		}

		res, err := generator.GenerateFees(ctx, payload.CenterID, payload.Year, months)
		if err != nil {
			logger.Error("scheduled fee generation failed",
				slog.Any("error", err), slog.Int64("center_id", payload.CenterID))
			return err
		}
		metrics.AddFeesGenerated(res.FeesGenerated)
		logger.Info("scheduled fee generation done",
			slog.Int64("center_id", payload.CenterID),
			slog.Int("fees_generated", res.FeesGenerated))
		return nil
	}
}

// NewOverdueScanHandler builds the handler for TaskTypeOverdueScan. One run
// walks every center; per-center failures are logged and the walk continues.
func NewOverdueScanHandler(source OverdueSource, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		centers, err := source.ListCenterIDs(ctx)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, centerID := range centers {
			summary, err := source.OutstandingSummary(ctx, centerID, now)
			if err != nil {
				logger.Error("overdue scan failed for center",
					slog.Any("error", err), slog.Int64("center_id", centerID))
				continue
			}
			metrics.SetOverdueFees(centerID, summary.OverdueCount)
			if summary.OverdueCount > 0 {
				logger.Warn("overdue fees outstanding",
					slog.Int64("center_id", centerID),
					slog.Int("count", summary.OverdueCount),
					slog.String("amount", summary.OverdueAmount.String()))
			}
		}
		return nil
	}
}
