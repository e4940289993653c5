package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-checkout/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/reconciliation"
	mercadopagowebhook "github.com/angelmondragon/storefront-checkout/internal/webhooks/mercadopago"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/mercadopago"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	pkgstripe "github.com/angelmondragon/storefront-checkout/pkg/stripe"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

const shutdownTimeout = 15 * time.Second

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
		Env:         cfg.App.Env,
		Format:      cfg.App.LogFormat,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	vendureClient, err := vendure.NewClient(cfg.Vendure.ShopAPIURL,
		vendure.WithTimeout(cfg.Vendure.Timeout),
		vendure.WithMetrics(checkoutMetrics),
		vendure.WithLogger(logg),
	)
	if err != nil {
		logg.Error(ctx, "failed to create vendure client", err)
		os.Exit(1)
	}

	// A missing MercadoPago token is reported per request, not at boot.
	var mpClient *mercadopago.Client
	mpCreds, mpConfigErr := cfg.MercadoPago.Credentials()
	if mpConfigErr == nil {
		mpClient, mpConfigErr = mercadopago.NewClient(mpCreds.AccessToken,
			mercadopago.WithBaseURL(cfg.MercadoPago.APIBaseURL),
			mercadopago.WithTimeout(cfg.MercadoPago.Timeout),
			mercadopago.WithMetrics(checkoutMetrics),
		)
	}
	if mpConfigErr != nil {
		logg.Warn(logg.WithField(ctx, "error", mpConfigErr.Error()), "mercadopago disabled")
	}

	var stripeIntents pkgstripe.PaymentIntentReader
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			logg.Error(ctx, "failed to create stripe client", err)
			os.Exit(1)
		}
		stripeIntents = pkgstripe.NewPaymentIntentReader(stripeClient)
	}

	var (
		dbClient   *db.Client
		ledgerRepo reconciliation.Repository
	)
	if cfg.DB.Enabled() {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.OnStartup(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		ledgerRepo = reconciliation.NewRepository(dbClient.DB())
	} else {
		logg.Warn(ctx, "no database configured, reconciliation ledger disabled")
	}
	ledger := reconciliation.NewService(ledgerRepo, logg, checkoutMetrics)

	var (
		redisClient  *redis.Client
		webhookGuard *mercadopagowebhook.IdempotencyGuard
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		webhookGuard, err = mercadopagowebhook.NewIdempotencyGuard(redisClient, cfg.MercadoPago.WebhookDedupe, mercadopagowebhook.DedupeScope)
		if err != nil {
			logg.Error(ctx, "failed to create webhook guard", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "no redis configured, idempotency replay and rate limits disabled")
	}

	checkoutParams := checkout.ServiceParams{
		Gateway:              vendureClient,
		MercadoPagoCreds:     mpCreds,
		MercadoPagoConfigErr: mpConfigErr,
		StripeIntents:        stripeIntents,
		Ledger:               ledger,
		Metrics:              checkoutMetrics,
		Logger:               logg,
		StorefrontBaseURL:    cfg.Storefront.RawBaseURL(),
	}
	if mpClient != nil {
		checkoutParams.MercadoPago = mpClient
	}
	checkoutService, err := checkout.NewService(checkoutParams)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(vendureClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	var mpWebhook *mercadopagowebhook.Service
	if mpClient != nil {
		params := mercadopagowebhook.ServiceParams{
			Payments: mpClient,
			Ledger:   ledger,
			Logger:   logg,
		}
		if webhookGuard != nil {
			params.Guard = webhookGuard
		}
		mpWebhook, err = mercadopagowebhook.NewService(params)
		if err != nil {
			logg.Error(ctx, "failed to create mercadopago webhook service", err)
			os.Exit(1)
		}
	}

	readiness := []controllers.ReadinessCheck{{Name: "vendure", Pinger: vendureClient}}
	if redisClient != nil {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient})
	} else {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "redis"})
	}
	if dbClient != nil {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "db", Pinger: dbClient})
	} else {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "db"})
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
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	var webhookHandler webhookcontrollers.MercadoPagoWebhookService
	if mpWebhook != nil {
		webhookHandler = mpWebhook
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			readiness,
			redisClient,
			registry,
			checkoutService,
			ordersService,
			ledger,
			webhookHandler,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
