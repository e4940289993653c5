package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	admincontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/admin"
	checkoutcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/checkout"
	ordercontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/reconciliation"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness []controllers.ReadinessCheck,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	reconciliationService reconciliation.Service,
	mercadoPagoWebhookService webhookcontrollers.MercadoPagoWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Storefront.CORSOrigins),
	)

	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var (
		idempotencyStore redis.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		limiterStore = redisClient
	}

	processPaymentPolicy := middleware.NewRateLimitPolicy(
		"process_payment",
		cfg.RateLimit.ProcessPaymentWindow,
		cfg.RateLimit.ProcessPaymentIPLimit,
		cfg.RateLimit.ProcessPaymentEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/checkout", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Idempotency.TTL, logg))

		r.Post("/payment-intent", checkoutcontrollers.PaymentIntent(checkoutService, logg))
		r.Route("/mercadopago", func(r chi.Router) {
			r.Post("/", checkoutcontrollers.MercadoPagoPreference(checkoutService, logg))
			r.Get("/config", checkoutcontrollers.MercadoPagoConfig(checkoutService, logg))
			r.With(middleware.RateLimit(processPaymentPolicy, limiterStore, logg)).
				Post("/process-payment", checkoutcontrollers.ProcessMercadoPagoPayment(checkoutService, logg))
		})
		r.Route("/stripe/payment-intents", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.StripePaymentIntentStatus(checkoutService, logg))
			r.Get("/{id}", checkoutcontrollers.StripePaymentIntentStatus(checkoutService, logg))
		})

		r.Post("/set-customer", checkoutcontrollers.SetCustomer(checkoutService, logg))
		r.Post("/set-shipping-address", checkoutcontrollers.SetShippingAddress(checkoutService, logg))
		r.Get("/shipping-methods", checkoutcontrollers.ShippingMethods(checkoutService, logg))
		r.Post("/shipping-methods", checkoutcontrollers.SetShippingMethod(checkoutService, logg))
	})

	r.Get("/api/orders/{code}", ordercontrollers.ByCode(ordersService, logg))
	r.Get("/api/user/orders", ordercontrollers.CustomerOrders(ordersService, logg))

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(mercadoPagoWebhookService, cfg.MercadoPago.WebhookSecret, logg))
	})

	r.Route("/api/admin/reconciliation", func(r chi.Router) {
		r.Use(middleware.OperatorAuth(cfg.Operator, logg))
		r.With(middleware.RequireOperatorRole(logg, enums.OperatorRoleViewer, enums.OperatorRoleReconciler)).
			Get("/", admincontrollers.ListAttempts(reconciliationService, logg))
		r.With(middleware.RequireOperatorRole(logg, enums.OperatorRoleReconciler)).
			Post("/{id}/resolve", admincontrollers.ResolveAttempt(reconciliationService, logg))
	})

	return r
}
