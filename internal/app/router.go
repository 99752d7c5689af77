package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/centerdesk/centerdesk/internal/billing"
	"github.com/centerdesk/centerdesk/internal/observability"
	"github.com/centerdesk/centerdesk/internal/payments"
	"github.com/centerdesk/centerdesk/internal/reporting"
	"github.com/centerdesk/centerdesk/internal/settings"
	"github.com/centerdesk/centerdesk/internal/students"
	"github.com/centerdesk/centerdesk/internal/subjects"
	"github.com/centerdesk/centerdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	StudentsHandler  *students.Handler
	SubjectsHandler  *subjects.Handler
	SettingsHandler  *settings.Handler
	BillingHandler   *billing.Handler
	PaymentsHandler  *payments.Handler
	ReportingHandler *reporting.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with CenterDesk defaults. All domain
// routes live under /centers/{centerID}; handlers read the center scope from
// the route context.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/centers/{centerID}", func(r chi.Router) {
		if params.StudentsHandler != nil {
			r.Route("/students", params.StudentsHandler.MountRoutes)
		}
		if params.SubjectsHandler != nil {
			r.Route("/subjects", params.SubjectsHandler.MountRoutes)
		}
		if params.SettingsHandler != nil {
			r.Route("/settings", params.SettingsHandler.MountRoutes)
		}
		if params.BillingHandler != nil {
			r.Route("/billing", params.BillingHandler.MountRoutes)
		}
		if params.PaymentsHandler != nil {
			r.Route("/payments", params.PaymentsHandler.MountRoutes)
		}
		if params.ReportingHandler != nil {
			r.Route("/reports", params.ReportingHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
