package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/centerdesk/centerdesk/internal/app"
	"github.com/centerdesk/centerdesk/internal/billing"
	"github.com/centerdesk/centerdesk/internal/observability"
	"github.com/centerdesk/centerdesk/internal/payments"
	"github.com/centerdesk/centerdesk/internal/platform/cache"
	"github.com/centerdesk/centerdesk/internal/platform/db"
	"github.com/centerdesk/centerdesk/internal/reporting"
	"github.com/centerdesk/centerdesk/internal/settings"
	"github.com/centerdesk/centerdesk/internal/students"
	"github.com/centerdesk/centerdesk/internal/subjects"
	"github.com/centerdesk/centerdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, reports run uncached", slog.Any("error", err))
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

	metrics := observability.NewMetrics()

	settingsService := settings.NewService(settings.NewRepository(pool))
	settingsHandler := settings.NewHandler(logger, settingsService)

	studentsService := students.NewService(students.NewRepository(pool))
	studentsHandler := students.NewHandler(logger, studentsService)

	subjectsService := subjects.NewService(subjects.NewRepository(pool))
	subjectsHandler := subjects.NewHandler(logger, subjectsService)

	billingService := billing.NewService(billing.NewRepository(pool), logger, cfg.BillingBatchSize)
	billingHandler := billing.NewHandler(logger, billingService, settingsService, metrics)

	paymentsService := payments.NewService(payments.NewRepository(pool), billingService, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService)

	reportCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	reportingService := reporting.NewService(reporting.NewRepository(pool), settingsService, reportCache)
	reportingHandler := reporting.NewHandler(logger, reportingService)
	if err := reportCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	invalidateReports := func(ctx context.Context) {
		if err := reportingService.Invalidate(ctx); err != nil {
			logger.Warn("invalidate report cache", slog.Any("error", err))
		}
	}
	billingService.SetLedgerChangedHook(invalidateReports)
	paymentsService.SetLedgerChangedHook(invalidateReports)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		StudentsHandler:  studentsHandler,
		SubjectsHandler:  subjectsHandler,
		SettingsHandler:  settingsHandler,
		BillingHandler:   billingHandler,
		PaymentsHandler:  paymentsHandler,
		ReportingHandler: reportingHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
