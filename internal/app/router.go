package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockpilot/stockpilot/internal/masterdata/categories"
	"github.com/stockpilot/stockpilot/internal/masterdata/departments"
	"github.com/stockpilot/stockpilot/internal/masterdata/products"
	"github.com/stockpilot/stockpilot/internal/masterdata/vendors"
	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/outward"
	"github.com/stockpilot/stockpilot/internal/purchasing"
	"github.com/stockpilot/stockpilot/internal/reports"
	"github.com/stockpilot/stockpilot/internal/snapshot"
	"github.com/stockpilot/stockpilot/internal/stock"
	"github.com/stockpilot/stockpilot/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProductsHandler    *products.Handler
	CategoriesHandler  *categories.Handler
	VendorsHandler     *vendors.Handler
	DepartmentsHandler *departments.Handler
	StockHandler       *stock.Handler
	PurchasingHandler  *purchasing.Handler
	OutwardHandler     *outward.Handler
	ReportsHandler     *reports.Handler
	SnapshotHandler    *snapshot.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with StockPilot defaults.
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

	r.Route("/products", params.ProductsHandler.MountRoutes)
	r.Route("/categories", params.CategoriesHandler.MountRoutes)
	r.Route("/vendors", params.VendorsHandler.MountRoutes)
	r.Route("/departments", params.DepartmentsHandler.MountRoutes)
	r.Route("/stock", params.StockHandler.MountRoutes)
	r.Route("/purchases", params.PurchasingHandler.MountRoutes)
	r.Route("/outwards", params.OutwardHandler.MountRoutes)
	r.Route("/reports", params.ReportsHandler.MountRoutes)
	if params.SnapshotHandler != nil {
		r.Route("/snapshot", params.SnapshotHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
