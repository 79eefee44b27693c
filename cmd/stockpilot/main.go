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

	"github.com/stockpilot/stockpilot/internal/app"
	"github.com/stockpilot/stockpilot/internal/masterdata/categories"
	"github.com/stockpilot/stockpilot/internal/masterdata/departments"
	"github.com/stockpilot/stockpilot/internal/masterdata/products"
	"github.com/stockpilot/stockpilot/internal/masterdata/vendors"
	"github.com/stockpilot/stockpilot/internal/observability"
	"github.com/stockpilot/stockpilot/internal/outward"
	"github.com/stockpilot/stockpilot/internal/platform/cache"
	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/purchasing"
	"github.com/stockpilot/stockpilot/internal/reports"
	"github.com/stockpilot/stockpilot/internal/shared"
	"github.com/stockpilot/stockpilot/internal/snapshot"
	"github.com/stockpilot/stockpilot/internal/stock"
	"github.com/stockpilot/stockpilot/jobs"
)

func main() {
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
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	go func() {
		if err := reportCache.ListenForInvalidation(ctx, "reports.bump"); err != nil && ctx.Err() == nil {
			logger.Warn("report cache listener", slog.Any("error", err))
		}
	}()

	productsService := products.NewService(products.NewRepository(pool))
	categoriesService := categories.NewService(categories.NewRepository(pool))
	vendorsService := vendors.NewService(vendors.NewRepository(pool))
	departmentsService := departments.NewService(departments.NewRepository(pool))

	stockService := stock.NewService(stock.NewRepository(pool), auditLogger, reportCache, metrics,
		stock.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})
	purchasingService := purchasing.NewService(purchasing.NewRepository(pool), auditLogger, reportCache,
		idempotencyStore, metrics, purchasing.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})
	outwardService := outward.NewService(outward.NewRepository(pool), auditLogger, reportCache,
		idempotencyStore, metrics, outward.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})

	reportsService := reports.NewService(reports.NewRepository(pool), reportCache)
	snapshotService := snapshot.NewService(snapshot.NewRepository(pool), auditLogger, reportCache)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProductsHandler:    products.NewHandler(logger, productsService),
		CategoriesHandler:  categories.NewHandler(logger, categoriesService),
		VendorsHandler:     vendors.NewHandler(logger, vendorsService),
		DepartmentsHandler: departments.NewHandler(logger, departmentsService),
		StockHandler:       stock.NewHandler(logger, stockService),
		PurchasingHandler:  purchasing.NewHandler(logger, purchasingService),
		OutwardHandler:     outward.NewHandler(logger, outwardService),
		ReportsHandler:     reports.NewHandler(logger, reportsService),
		SnapshotHandler:    snapshot.NewHandler(logger, snapshotService),
		JobHandler:         jobs.NewHandler(inspector, jobClient, logger),
		Metrics:            metrics,
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
