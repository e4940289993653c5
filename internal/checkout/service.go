// Package checkout orchestrates payment handles and payment confirmation for
// the session's active Vendure order.
package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/orderstate"
	"github.com/angelmondragon/storefront-checkout/internal/reconciliation"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/mercadopago"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	pkgstripe "github.com/angelmondragon/storefront-checkout/pkg/stripe"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

// Service exposes the checkout operations behind /api/checkout.
type Service interface {
	CreatePaymentIntent(ctx context.Context, session *vendure.Session, input PaymentIntentInput) (any, error)
	CreateStripePaymentIntent(ctx context.Context, session *vendure.Session) (*StripePaymentIntent, error)
	CreateMercadoPagoPreference(ctx context.Context, session *vendure.Session, idempotencyKey string) (*MercadoPagoPreference, error)
	ProcessMercadoPagoPayment(ctx context.Context, session *vendure.Session, input ProcessPaymentInput) (*ProcessPaymentResult, error)
	MercadoPagoCardForm(ctx context.Context) (*CardFormConfig, error)
	SetCustomer(ctx context.Context, session *vendure.Session, input SetCustomerInput) (*CustomerResult, error)
	SetAddresses(ctx context.Context, session *vendure.Session, input SetAddressInput) (*vendure.Order, error)
	ShippingMethods(ctx context.Context, session *vendure.Session) ([]vendure.ShippingMethodQuote, error)
	SetShippingMethods(ctx context.Context, session *vendure.Session, ids []string) (*vendure.Order, error)
	StripePaymentIntentStatus(ctx context.Context, id string) (*StripeIntentStatus, error)
}

type mercadoPagoAPI interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest, idempotencyKey string) (*mercadopago.Preference, error)
	CreatePayment(ctx context.Context, req mercadopago.PaymentRequest, idempotencyKey string) (*mercadopago.Payment, error)
}

type attemptRecorder interface {
	RecordAttempt(ctx context.Context, input reconciliation.RecordAttemptInput)
}

// ServiceParams bundles the dependencies required to build the checkout service.
type ServiceParams struct {
	Gateway orderstate.Gateway
	// MercadoPago is nil when no access token is configured for the active
	// environment; MercadoPagoConfigErr then explains what is missing.
	MercadoPago          mercadoPagoAPI
	MercadoPagoCreds     config.MercadoPagoCredentials
	MercadoPagoConfigErr error
	StripeIntents        pkgstripe.PaymentIntentReader
	Ledger               attemptRecorder
	Metrics              *metrics.CheckoutMetrics
	Logger               *logger.Logger
	StorefrontBaseURL    string
	Clock                func() time.Time
}

type service struct {
	gateway       orderstate.Gateway
	coordinator   *orderstate.Coordinator
	mercadoPago   mercadoPagoAPI
	mpCreds       config.MercadoPagoCredentials
	mpConfigErr   error
	stripeIntents pkgstripe.PaymentIntentReader
	ledger        attemptRecorder
	metrics       *metrics.CheckoutMetrics
	logg          *logger.Logger
	baseURL       string
	now           func() time.Time
}

// NewService constructs the checkout service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("vendure gateway is required")
	}
	coordinator, err := orderstate.NewCoordinator(params.Gateway, params.Logger)
	if err != nil {
		return nil, err
	}
	baseURL, err := NormalizeBaseURL(params.StorefrontBaseURL)
	if err != nil {
		return nil, err
	}
	if params.Ledger == nil {
		params.Ledger = reconciliation.NewService(nil, params.Logger, params.Metrics)
	}
	mpConfigErr := params.MercadoPagoConfigErr
	if params.MercadoPagoCreds.Env == "" {
		params.MercadoPagoCreds.Env = config.MercadoPagoEnvDev
	}
	if params.MercadoPago == nil && mpConfigErr == nil {
		mpConfigErr = fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN_%s is not set", strings.ToUpper(params.MercadoPagoCreds.Env))
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		gateway:       params.Gateway,
		coordinator:   coordinator,
		mercadoPago:   params.MercadoPago,
		mpCreds:       params.MercadoPagoCreds,
		mpConfigErr:   mpConfigErr,
		stripeIntents: params.StripeIntents,
		ledger:        params.Ledger,
		metrics:       params.Metrics,
		logg:          params.Logger,
		baseURL:       baseURL,
		now:           clock,
	}, nil
}

// mercadoPagoClient returns the configured client or MERCADOPAGO_CONFIG_ERROR.
func (s *service) mercadoPagoClient() (mercadoPagoAPI, error) {
	if s.mercadoPago != nil {
		return s.mercadoPago, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeMercadoPagoConfig, s.mpConfigErr, s.mpConfigErr.Error())
}

// providerIdempotencyKey scopes the browser's key to the order so a retried
// submission maps to the same provider request.
func (s *service) providerIdempotencyKey(orderCode, clientKey string) string {
	if key := strings.TrimSpace(clientKey); key != "" {
		return orderCode + "-" + key
	}
	return orderCode + "-" + strconv.FormatInt(s.now().UnixMilli(), 10)
}

func (s *service) logWithOrder(ctx context.Context, orderCode string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithOrderCode(ctx, orderCode)
}
