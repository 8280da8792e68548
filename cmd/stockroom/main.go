package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/stockroom/internal/activity"
	"github.com/odyssey-erp/stockroom/internal/app"
	"github.com/odyssey-erp/stockroom/internal/inventory"
	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/internal/platform/cache"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/products"
	"github.com/odyssey-erp/stockroom/internal/reports"
	"github.com/odyssey-erp/stockroom/internal/shared"
	"github.com/odyssey-erp/stockroom/internal/transactions"
	"github.com/odyssey-erp/stockroom/jobs"
	"github.com/odyssey-erp/stockroom/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "stockroom")

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbpool, migrations.FS, "up"); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("job inspector close", slog.Any("error", err))
		}
	}()

	activityService := activity.NewService(activity.NewRepository(dbpool))
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), inventory.NewCache(redisClient, cfg.ReportCacheTTL))
	productService := products.NewService(products.NewRepository(dbpool), inventoryService, logger)

	transactionRepo := transactions.NewRepository(dbpool)
	transactionService := transactions.NewService(transactionRepo, transactions.Deps{
		Idempotency: idempotencyStore,
		Notifier:    jobClient,
		Cache:       inventoryService,
		Metrics:     metrics,
		Logger:      logger,
	}, transactions.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
		MaxRetries:         cfg.TxMaxRetries,
		RetryBackoff:       cfg.TxRetryBackoff,
		Timeout:            cfg.TxTimeout,
	})

	reportService := reports.NewService(transactionRepo, inventoryService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		TransactionHandler: transactions.NewHandler(logger, transactionService),
		ProductHandler:     products.NewHandler(logger, productService),
		ActivityHandler:    activity.NewHandler(logger, activityService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		ReportHandler:      reports.NewHandler(logger, reportService),
		JobHandler:         jobs.NewHandler(inspector, logger),
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
