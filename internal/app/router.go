package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-wms/meridian-wms/internal/agents"
	"github.com/meridian-wms/meridian-wms/internal/auth"
	"github.com/meridian-wms/meridian-wms/internal/catalog"
	"github.com/meridian-wms/meridian-wms/internal/dispatch"
	"github.com/meridian-wms/meridian-wms/internal/procurement"
	"github.com/meridian-wms/meridian-wms/internal/stock"
	"github.com/meridian-wms/meridian-wms/internal/vendors"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config             *Config
	Tokens             *auth.TokenVerifier
	ProcurementHandler *procurement.Handler
	StockHandler       *stock.Handler
	DispatchHandler    *dispatch.Handler
	AgentsHandler      *agents.Handler
	VendorsHandler     *vendors.Handler
	CatalogHandler     *catalog.Handler

	Middlewares []func(http.Handler) http.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range params.Middlewares {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		if params.Tokens != nil {
			r.Use(params.Tokens.Middleware)
		}
		r.Route("/procurement", params.ProcurementHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/dispatches", params.DispatchHandler.MountRoutes)
		if params.AgentsHandler != nil {
			r.Route("/agents", params.AgentsHandler.MountRoutes)
		}
		if params.VendorsHandler != nil {
			r.Route("/vendors", params.VendorsHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
	})

	return r
}
