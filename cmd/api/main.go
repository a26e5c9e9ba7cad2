package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stockledger/api/controllers"
	"github.com/angelmondragon/stockledger/api/routes"
	"github.com/angelmondragon/stockledger/internal/access"
	"github.com/angelmondragon/stockledger/internal/cron"
	"github.com/angelmondragon/stockledger/internal/orders"
	product "github.com/angelmondragon/stockledger/internal/products"
	"github.com/angelmondragon/stockledger/internal/reconcile"
	"github.com/angelmondragon/stockledger/internal/statistics"
	"github.com/angelmondragon/stockledger/internal/writeback"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
	"github.com/angelmondragon/stockledger/pkg/migrate"
	"github.com/angelmondragon/stockledger/pkg/redis"
	"github.com/angelmondragon/stockledger/pkg/sheets"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	loc, err := cfg.App.Location()
	if err != nil {
		logg.Error(context.Background(), "failed to load time zone", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sheetsClient, err := sheets.NewClient(context.Background(), cfg.Sheets, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap sheets client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gate := sheets.NewGate()
	retryPolicy := sheets.RetryPolicy{
		MaxAttempts: cfg.WriteBack.MaxAttempts,
		BaseBackoff: cfg.WriteBack.BaseBackoff,
	}

	queue, err := writeback.NewQueue(writeback.QueueParams{
		Logger:  logg,
		Gateway: sheetsClient,
		Gate:    gate,
		Auth:    sheetsClient,
		Metrics: metrics.NewWriteBackMetrics(registry),
		Size:    cfg.WriteBack.QueueSize,
		Retry:   retryPolicy,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create write-back queue", err)
		os.Exit(1)
	}

	productRepo := product.NewRepository(dbClient.DB())
	productService, err := product.NewService(product.ServiceParams{
		Repo:    productRepo,
		DB:      dbClient,
		Queue:   queue,
		Locator: reconcile.LayoutFromConfig(cfg.Sheets),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	queue.OnApplied(productService.ConfirmWriteBack)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:       orders.NewRepository(dbClient.DB()),
		DB:         dbClient,
		Stock:      productService,
		Sales:      queue,
		SalesSheet: cfg.Sheets.SalesSheet,
		Logger:     logg,
		Location:   loc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	statisticsService, err := statistics.NewService(ordersService, loc, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create statistics service", err)
		os.Exit(1)
	}

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		Logger:    logg,
		Gateway:   sheetsClient,
		Gate:      gate,
		Auth:      sheetsClient,
		Repo:      productRepo,
		DB:        dbClient,
		WriteBack: productService,
		Sheets:    cfg.Sheets,
		Retry:     retryPolicy,
		Metrics:   metrics.NewReconcileMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation engine", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(reconcile.JobName), cfg.Sync.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sync lock", err)
		os.Exit(1)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(engine),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(registry),
		Interval: cfg.Sync.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sync scheduler", err)
		os.Exit(1)
	}

	var accessGate controllers.AccessGate
	if strings.TrimSpace(cfg.Access.PasswordHash) != "" {
		store, err := access.NewRedisStore(redisClient, cfg.Access.FailureWindow)
		if err != nil {
			logg.Error(context.Background(), "failed to create access store", err)
			os.Exit(1)
		}
		gate, err := access.NewGate(access.GateParams{
			Store:        store,
			PasswordHash: cfg.Access.PasswordHash,
			MaxAttempts:  cfg.Access.MaxFailedAttempts,
			Logger:       logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create access gate", err)
			os.Exit(1)
		}
		accessGate = gate
	} else {
		logg.Warn(context.Background(), "access password hash not configured, access routes disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: readHeaderTimeout,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			ordersService,
			statisticsService,
			engine,
			accessGate,
			loc,
		),
	}

	// The queue outlives the server and the scheduler so their last
	// mutations still reach the sheet.
	go func() {
		_ = queue.Run(context.WithoutCancel(ctx))
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := scheduler.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := group.Wait()
	if runErr != nil {
		logg.Error(ctx, "api stopped unexpectedly", runErr)
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := queue.Shutdown(drainCtx); err != nil {
		logg.Error(ctx, "write-back queue did not drain", err)
	}

	logg.Info(ctx, "api shut down")
	if runErr != nil {
		os.Exit(1)
	}
}
