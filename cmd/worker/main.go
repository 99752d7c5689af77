package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/centerdesk/centerdesk/internal/app"
	"github.com/centerdesk/centerdesk/internal/billing"
	jobmetrics "github.com/centerdesk/centerdesk/internal/jobs"
	"github.com/centerdesk/centerdesk/internal/observability"
	"github.com/centerdesk/centerdesk/internal/platform/cache"
	"github.com/centerdesk/centerdesk/internal/platform/db"
	"github.com/centerdesk/centerdesk/internal/reporting"
	"github.com/centerdesk/centerdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()
	jm := jobmetrics.NewMetrics(metrics.Registerer())

	billingService := billing.NewService(billing.NewRepository(pool), logger, cfg.BillingBatchSize)
	reportingRepo := reporting.NewRepository(pool)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, skipping report cache bumps", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	billingService.SetLedgerChangedHook(func(ctx context.Context) {
		if err := reportCache.Bump(ctx); err != nil {
			logger.Warn("bump report cache", slog.Any("error", err))
		}
	})

	generateHandler := jobs.Instrument(jobs.TaskTypeGenerateFees, jm,
		jobs.NewGenerateFeesHandler(billingService, metrics, logger))
	overdueHandler := jobs.Instrument(jobs.TaskTypeOverdueScan, jm,
		jobs.NewOverdueScanHandler(reportingRepo, metrics, logger))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeGenerateFees, Handler: generateHandler},
			{Type: jobs.TaskTypeOverdueScan, Handler: overdueHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueScanCron, Task: jobs.NewOverdueScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
