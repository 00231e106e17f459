package app

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ohada-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/entries"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/ohada-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/ohada-ledger/internal/assets"
	"github.com/odyssey-erp/ohada-ledger/internal/observability"
	"github.com/odyssey-erp/ohada-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil handlers are not mounted.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountsHandler   *accounts.Handler
	JournalsHandler   *journals.Handler
	FiscalYearHandler *periods.Handler
	EntriesHandler    *entries.Handler
	LedgerHandler     *ledger.Handler
	ReportsHandler    *reports.Handler
	AssetsHandler     *assets.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router serving the ledger API.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.JournalsHandler != nil {
			r.Route("/journals", params.JournalsHandler.MountRoutes)
		}
		if params.FiscalYearHandler != nil {
			r.Route("/fiscal-years", params.FiscalYearHandler.MountRoutes)
		}
		if params.EntriesHandler != nil {
			r.Route("/entries", params.EntriesHandler.MountRoutes)
			r.Route("/lettering", params.EntriesHandler.MountLetteringRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.AssetsHandler != nil {
			r.Route("/assets", params.AssetsHandler.MountRoutes)
			r.Route("/depreciation/runs", params.AssetsHandler.MountRunRoutes)
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
