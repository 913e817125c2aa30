package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-wms/meridian-wms/internal/agents"
	"github.com/meridian-wms/meridian-wms/internal/app"
	"github.com/meridian-wms/meridian-wms/internal/auth"
	"github.com/meridian-wms/meridian-wms/internal/catalog"
	"github.com/meridian-wms/meridian-wms/internal/dispatch"
	"github.com/meridian-wms/meridian-wms/internal/platform/cache"
	"github.com/meridian-wms/meridian-wms/internal/platform/db"
	"github.com/meridian-wms/meridian-wms/internal/procurement"
	"github.com/meridian-wms/meridian-wms/internal/shared"
	"github.com/meridian-wms/meridian-wms/internal/stock"
	"github.com/meridian-wms/meridian-wms/internal/vendors"
)

// vendorSource adapts the vendor registry to the procurement snapshot port.
type vendorSource struct {
	vendors *vendors.Service
}

func (s vendorSource) Snapshot(ctx context.Context, vendorID int64) (procurement.VendorSnapshot, error) {
	vendor, err := s.vendors.Get(ctx, vendorID)
	if err != nil {
		return procurement.VendorSnapshot{}, err
	}
	if !vendor.Active {
		return procurement.VendorSnapshot{}, shared.NewValidationError("vendor_id", "vendor is inactive")
	}
	return procurement.VendorSnapshot{
		VendorID:      vendor.ID,
		Name:          vendor.Name,
		ContactPerson: vendor.ContactPerson,
		Phone:         vendor.Phone,
		Email:         vendor.Email,
		Address:       vendor.Address,
		GSTIN:         vendor.GSTIN,
	}, nil
}

// productSource adapts the catalogue to the procurement line enrichment port.
type productSource struct {
	catalog *catalog.Service
}

func (s productSource) Lookup(ctx context.Context, sku string) (procurement.ProductInfo, error) {
	product, err := s.catalog.Get(ctx, sku)
	if err != nil {
		return procurement.ProductInfo{}, err
	}
	return procurement.ProductInfo{Name: product.Name, Category: product.Category, UOM: product.UOM}, nil
}

// dispatchProductSource adapts the catalogue for dispatch line names.
type dispatchProductSource struct {
	catalog *catalog.Service
}

func (s dispatchProductSource) Lookup(ctx context.Context, sku string) (dispatch.ProductInfo, error) {
	product, err := s.catalog.Get(ctx, sku)
	if err != nil {
		return dispatch.ProductInfo{}, err
	}
	return dispatch.ProductInfo{Name: product.Name}, nil
}

// agentSource adapts the agent registry to the dispatch assignment port.
type agentSource struct {
	agents *agents.Service
}

func (s agentSource) Info(ctx context.Context, agentID int64) (dispatch.AgentInfo, error) {
	agent, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return dispatch.AgentInfo{}, err
	}
	return dispatch.AgentInfo{ID: agent.ID, Name: agent.Name, Active: agent.Active}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// availability falls back to balance reads when the cache is down
		logger.Warn("redis unavailable, running without availability cache", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	tokens := auth.NewTokenVerifier(cfg.APITokenHash, logger)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger)

	vendorRepo := vendors.NewRepository(dbpool)
	vendorService := vendors.NewService(vendorRepo, auditLogger)

	agentRepo := agents.NewRepository(dbpool)
	agentService := agents.NewService(agentRepo, auditLogger)

	availabilityCache := stock.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL)
	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, availabilityCache, auditLogger)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, vendorSource{vendors: vendorService}, productSource{catalog: catalogService}, auditLogger)
	receiptService := procurement.NewReceiptService(procurementRepo, stockService, idempotencyStore, auditLogger)

	dispatchRepo := dispatch.NewRepository(dbpool)
	dispatchService := dispatch.NewService(dispatchRepo, stockService, agentSource{agents: agentService}, dispatchProductSource{catalog: catalogService}, auditLogger)

	router := app.NewRouter(app.RouterParams{
		Config:             cfg,
		Tokens:             tokens,
		ProcurementHandler: procurement.NewHandler(logger, procurementService, receiptService),
		StockHandler:       stock.NewHandler(logger, stockService),
		DispatchHandler:    dispatch.NewHandler(logger, dispatchService),
		AgentsHandler:      agents.NewHandler(logger, agentService),
		VendorsHandler:     vendors.NewHandler(logger, vendorService),
		CatalogHandler:     catalog.NewHandler(logger, catalogService),
		Middlewares:        app.MiddlewareStack(app.MiddlewareConfig{Logger: logger, Config: cfg}),
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
