package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laundrylink/laundrylink-backend/internal/orders"
	"github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
	"github.com/laundrylink/laundrylink-backend/internal/quotes"
	"github.com/laundrylink/laundrylink-backend/internal/reconcile"
	"github.com/laundrylink/laundrylink-backend/internal/stores"
	"github.com/laundrylink/laundrylink-backend/internal/users"
	"github.com/laundrylink/laundrylink-backend/pkg/config"
	"github.com/laundrylink/laundrylink-backend/pkg/courier"
	"github.com/laundrylink/laundrylink-backend/pkg/db"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
	"github.com/laundrylink/laundrylink-backend/pkg/metrics"
	"github.com/laundrylink/laundrylink-backend/pkg/migrate"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox"
	"github.com/laundrylink/laundrylink-backend/pkg/redis"
	pkgstripe "github.com/laundrylink/laundrylink-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reconcile-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reconcile-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	courierClient, err := courier.NewClient(cfg.Courier, courier.NewTokenSource(cfg.Courier, redisClient, logg))
	if err != nil {
		logg.Error(context.Background(), "failed to create courier client", err)
		os.Exit(1)
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	storesRepo := stores.NewRepository(dbClient.DB())
	quotesRepo := quotes.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	paymentService, err := paymentmethods.NewService(paymentmethods.ServiceParams{
		Users:      usersRepo,
		Gateway:    paymentmethods.NewStripeGateway(stripeClient),
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment method service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Quotes:   quotesRepo,
		Stores:   storesRepo,
		Users:    usersRepo,
		Courier:  courierClient,
		Payments: paymentService,
		Tx:       dbClient,
		Outbox:   outboxService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	quoteService, err := quotes.NewService(quotes.ServiceParams{
		Repo:         quotesRepo,
		Stores:       storesRepo,
		Users:        usersRepo,
		Courier:      courierClient,
		Payments:     paymentService,
		Orchestrator: orderService,
		Tx:           dbClient,
		Outbox:       outboxService,
		Logger:       logg,
		Config:       cfg.Quotes,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create quote service", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	expiryJob, err := reconcile.NewQuoteExpiryJob(quoteService, jobMetrics, cfg.Quotes.ExpirySweep)
	if err != nil {
		logg.Error(context.Background(), "failed to create quote expiry job", err)
		os.Exit(1)
	}
	orphanJob, err := reconcile.NewOrphanDeliveryJob(orderService, jobMetrics, cfg.Reconcile.OrphanSweepInterval, cfg.Reconcile.OrphanMinAge)
	if err != nil {
		logg.Error(context.Background(), "failed to create orphan delivery job", err)
		os.Exit(1)
	}

	service, err := reconcile.NewService(reconcile.ServiceParams{
		Logger: logg,
		Jobs:   []reconcile.Job{expiryJob, orphanJob},
		Locks: func(job string) (reconcile.Lock, error) {
			return reconcile.NewRedisLock(redisClient, redisClient.LockKey(job), cfg.Reconcile.LockTTL)
		},
		Metrics: jobMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reconcile worker")

	go serveMetrics(ctx, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconcile worker shutting down gracefully")
}

// serveMetrics exposes the Prometheus endpoint for the worker. The port is
// separate from the API's so both can run on one host.
func serveMetrics(ctx context.Context, logg *logger.Logger) {
	addr := os.Getenv("LAUNDRYLINK_METRICS_ADDR")
	if addr == "" {
		addr = ":9091"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
