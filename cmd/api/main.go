package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/laundrylink/laundrylink-backend/api/routes"
	"github.com/laundrylink/laundrylink-backend/internal/orders"
	"github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
	"github.com/laundrylink/laundrylink-backend/internal/quotes"
	"github.com/laundrylink/laundrylink-backend/internal/stores"
	"github.com/laundrylink/laundrylink-backend/internal/users"
	courierwebhook "github.com/laundrylink/laundrylink-backend/internal/webhooks/courier"
	stripewebhook "github.com/laundrylink/laundrylink-backend/internal/webhooks/stripe"
	"github.com/laundrylink/laundrylink-backend/pkg/config"
	"github.com/laundrylink/laundrylink-backend/pkg/courier"
	"github.com/laundrylink/laundrylink-backend/pkg/db"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
	"github.com/laundrylink/laundrylink-backend/pkg/migrate"
	"github.com/laundrylink/laundrylink-backend/pkg/outbox"
	"github.com/laundrylink/laundrylink-backend/pkg/redis"
	pkgstripe "github.com/laundrylink/laundrylink-backend/pkg/stripe"
)

// Webhook events are deduplicated for a day; both Uber and Stripe stop
// redelivering well inside that window.
const webhookDedupTTL = 24 * time.Hour

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

	storesRepo := stores.NewRepository(dbClient.DB())
	storeService, err := stores.NewService(storesRepo, cfg.Quotes)
	if err != nil {
		logg.Error(context.Background(), "failed to create store service", err)
		os.Exit(1)
	}

	quotesRepo := quotes.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

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

	courierGuard, err := courierwebhook.NewIdempotencyGuard(redisClient, webhookDedupTTL, "courier-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create courier webhook guard", err)
		os.Exit(1)
	}
	courierWebhookService, err := courierwebhook.NewService(courierwebhook.ServiceParams{
		Orders: orderService,
		Guard:  courierGuard,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create courier webhook service", err)
		os.Exit(1)
	}

	stripeGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookDedupTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}
	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Quotes: quotesRepo,
		Tx:     dbClient,
		Outbox: outboxService,
		Setup:  paymentService,
		Guard:  stripeGuard,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Quotes:         quoteService,
			Orders:         orderService,
			PaymentMethods: paymentService,
			Stores:         storeService,
			StripeWebhook:  stripeWebhookService,
			CourierWebhook: courierWebhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
