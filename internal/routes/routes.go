package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lumen-wallet/lumen_wallet/internal/accounts"
	"github.com/lumen-wallet/lumen_wallet/internal/admin"
	"github.com/lumen-wallet/lumen_wallet/internal/config"
	"github.com/lumen-wallet/lumen_wallet/internal/funding"
	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/metrics"
	"github.com/lumen-wallet/lumen_wallet/internal/middleware"
	"github.com/lumen-wallet/lumen_wallet/internal/notification"
	"github.com/lumen-wallet/lumen_wallet/internal/payments"
	"github.com/lumen-wallet/lumen_wallet/internal/wallet"
	"github.com/lumen-wallet/lumen_wallet/internal/withdrawals"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Events   notification.MessageWriter
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Metrics(metrics.NewHTTP(d.Registry)))

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))

	// Stores
	var (
		store       ledger.Store
		accountRepo accounts.Repository
	)
	if d.DB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pgStore := ledger.NewPostgresStore(d.DB, d.Cfg.StoreTimeout)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		pgAccounts := accounts.NewPostgresRepository(d.DB)
		if err := pgAccounts.EnsureSchema(ctx); err != nil {
			return err
		}
		store, accountRepo = pgStore, pgAccounts
	} else {
		store, accountRepo = ledger.NewInMemory(), accounts.NewMemoryRepository()
	}

	// Services and handlers
	notifier := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Events != nil {
		notifier = append(notifier, notification.NewKafkaNotifier(d.Events))
	}
	ledgerMetrics := metrics.NewLedger(d.Registry)
	retry := ledger.RetryPolicy{Attempts: d.Cfg.TransferRetries + 1, Backoff: d.Cfg.RetryBackoff}

	walletSvc := wallet.NewService(store)
	accountSvc := accounts.NewService(accountRepo, store, d.Cfg.Limits.Currency)
	paymentSvc := payments.NewService(store, payments.Options{
		Limits: d.Cfg.Limits, Retry: retry, Notifier: notifier, Metrics: ledgerMetrics, Logger: d.Logger,
	})
	withdrawalSvc := withdrawals.NewService(store, accountSvc, withdrawals.Options{
		Limits: d.Cfg.Limits, Retry: retry, Notifier: notifier, Metrics: ledgerMetrics, Logger: d.Logger,
	})
	fundingSvc := funding.NewService(store, funding.Options{
		Limits: d.Cfg.Limits, Retry: retry, Notifier: notifier, Metrics: ledgerMetrics, Logger: d.Logger,
	})
	adminSvc := admin.NewService(store)

	walletHandler := wallet.NewHandler(walletSvc)
	paymentHandler := payments.NewHandler(paymentSvc)
	withdrawalHandler := withdrawals.NewHandler(withdrawalSvc)
	accountHandler := accounts.NewHandler(accountSvc)
	fundingHandler := funding.NewHandler(fundingSvc)
	adminHandler := admin.NewHandler(adminSvc)

	idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	limit := func(scope string) fiber.Handler {
		return middleware.RateLimit(d.Cache, scope, d.Cfg.RateLimit)
	}

	identity := middleware.Identity(d.Cfg.JWTSecret)

	// Read-only query surface
	RegisterWalletRoutes(app, walletHandler, identity)

	// Caller-bound routes
	RegisterPaymentRoutes(app, paymentHandler, identity, limit("send"), idem)
	RegisterWithdrawalRoutes(app, withdrawalHandler, identity, limit("withdraw"), idem)
	RegisterAccountRoutes(app, accountHandler, identity)
	RegisterMerchantRoutes(app, adminHandler, identity)

	// Collaborator and operator routes
	internal := app.Group("/internal", middleware.InternalToken(d.Cfg.InternalToken))
	RegisterInternalRoutes(internal, walletHandler, fundingHandler, withdrawalHandler, accountHandler, idem)
	RegisterAdminRoutes(app.Group("/admin", middleware.InternalToken(d.Cfg.InternalToken)), adminHandler)

	return nil
}
