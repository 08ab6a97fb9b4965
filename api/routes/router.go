package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/laundrylink/laundrylink-backend/api/controllers"
	ordercontrollers "github.com/laundrylink/laundrylink-backend/api/controllers/orders"
	pmcontrollers "github.com/laundrylink/laundrylink-backend/api/controllers/paymentmethods"
	quotecontrollers "github.com/laundrylink/laundrylink-backend/api/controllers/quotes"
	storecontrollers "github.com/laundrylink/laundrylink-backend/api/controllers/stores"
	webhookcontrollers "github.com/laundrylink/laundrylink-backend/api/controllers/webhooks"
	"github.com/laundrylink/laundrylink-backend/api/middleware"
	"github.com/laundrylink/laundrylink-backend/internal/orders"
	"github.com/laundrylink/laundrylink-backend/internal/paymentmethods"
	"github.com/laundrylink/laundrylink-backend/internal/quotes"
	"github.com/laundrylink/laundrylink-backend/internal/stores"
	"github.com/laundrylink/laundrylink-backend/pkg/config"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	"github.com/laundrylink/laundrylink-backend/pkg/logger"
	"github.com/laundrylink/laundrylink-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams bundles everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             pinger
	Redis          *redis.Client
	Quotes         quotes.Service
	Orders         orders.Service
	PaymentMethods paymentmethods.Service
	Stores         stores.Service
	StripeWebhook  webhookcontrollers.StripeWebhookService
	CourierWebhook webhookcontrollers.CourierWebhookService
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisPinger pinger
	if params.Redis != nil {
		redisPinger = params.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, redisPinger))
	})

	// Webhooks authenticate with provider signatures, not bearer tokens.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(params.StripeWebhook, cfg.Stripe.WebhookSecret, logg))
		r.Post("/courier", webhookcontrollers.CourierWebhook(params.CourierWebhook, cfg.Courier.WebhookSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if params.Redis != nil {
			r.Use(middleware.Idempotency(params.Redis, logg))
		}

		r.Route("/quotes", func(r chi.Router) {
			r.Post("/", quotecontrollers.Create(params.Quotes, logg))
			r.Get("/{quoteId}", quotecontrollers.Get(params.Quotes, logg))
			r.Post("/{quoteId}/payment-method", quotecontrollers.SelectPaymentMethod(params.Quotes, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleVendor), logg)).
				Post("/{quoteId}/decision", quotecontrollers.Decide(params.Quotes, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", ordercontrollers.Get(params.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(params.Orders, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleVendor), logg)).
				Post("/{orderId}/weight", ordercontrollers.Weigh(params.Orders, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleVendor), logg)).
				Post("/{orderId}/return", ordercontrollers.ScheduleReturn(params.Orders, logg))
		})

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/", pmcontrollers.List(params.PaymentMethods, logg))
			r.Post("/setup-intent", pmcontrollers.CreateSetupIntent(params.PaymentMethods, logg))
			r.Delete("/{paymentMethodId}", pmcontrollers.Delete(params.PaymentMethods, logg))
		})

		r.Route("/stores", func(r chi.Router) {
			r.Get("/nearby", storecontrollers.Nearby(params.Stores, logg))
			r.Get("/{storeId}", storecontrollers.Get(params.Stores, logg))
		})
	})

	return r
}
