package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/stockroom/internal/activity"
	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
	"github.com/odyssey-erp/stockroom/internal/products"
	"github.com/odyssey-erp/stockroom/internal/reports"
	"github.com/odyssey-erp/stockroom/internal/transactions"
	"github.com/odyssey-erp/stockroom/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers leave their routes unmounted.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	TransactionHandler *transactions.Handler
	ProductHandler     *products.Handler
	ActivityHandler    *activity.Handler
	InventoryHandler   *inventory.Handler
	ReportHandler      *reports.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with stockroom defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.TransactionHandler != nil {
			api.Route("/transactions", params.TransactionHandler.MountRoutes)
		}
		if params.ProductHandler != nil {
			api.Route("/products", params.ProductHandler.MountRoutes)
		}
		if params.ActivityHandler != nil {
			api.Route("/activity-logs", params.ActivityHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			api.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.ReportHandler != nil {
			api.Route("/reports", params.ReportHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
