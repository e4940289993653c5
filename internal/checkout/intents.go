package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/mercadopago"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

const defaultItemTitle = "Product"

// CreatePaymentIntent dispatches to the builder of the selected provider.
func (s *service) CreatePaymentIntent(ctx context.Context, session *vendure.Session, input PaymentIntentInput) (any, error) {
	switch input.PaymentMethod {
	case enums.PaymentMethodMercadoPago:
		return s.CreateMercadoPagoPreference(ctx, session, input.IdempotencyKey)
	case enums.PaymentMethodStripe, "":
		return s.CreateStripePaymentIntent(ctx, session)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", input.PaymentMethod)).
			WithDetails(map[string]string{"paymentMethod": "must be stripe or mercadopago"})
	}
}

func (s *service) CreateStripePaymentIntent(ctx context.Context, session *vendure.Session) (*StripePaymentIntent, error) {
	order, err := s.coordinator.EnsureArrangingPayment(ctx, session)
	if err != nil {
		return nil, err
	}

	res := s.gateway.Execute(ctx, vendure.Request{Query: vendure.CreateStripePaymentIntentMutation}, session)
	if res.HasErrors() {
		s.metrics.IncPaymentOutcome(string(enums.PaymentMethodStripe), "intent_failed")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, res.FirstMessage("Failed to create Stripe payment intent")).
			WithTitle("Failed to create payment intent").
			WithDetails(res.Errors)
	}

	var data struct {
		ClientSecret *string `json:"createStripePaymentIntent"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stripe payment intent")
	}
	if data.ClientSecret == nil || strings.TrimSpace(*data.ClientSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "Failed to get payment client secret from Stripe").
			WithTitle("No client secret")
	}

	s.metrics.IncPaymentOutcome(string(enums.PaymentMethodStripe), "intent_created")
	if s.logg != nil {
		s.logg.Info(s.logWithOrder(ctx, order.Code), "checkout.stripe_intent_created")
	}
	return &StripePaymentIntent{ClientSecret: *data.ClientSecret, OrderCode: order.Code}, nil
}

func (s *service) CreateMercadoPagoPreference(ctx context.Context, session *vendure.Session, idempotencyKey string) (*MercadoPagoPreference, error) {
	client, err := s.mercadoPagoClient()
	if err != nil {
		return nil, err
	}

	order, err := s.coordinator.EnsureArrangingPayment(ctx, session)
	if err != nil {
		return nil, err
	}

	req := BuildPreference(order, s.baseURL)
	key := s.providerIdempotencyKey(order.Code, idempotencyKey)

	started := time.Now()
	preference, err := client.CreatePreference(ctx, req, key)
	if err != nil {
		s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), "preference_failed")
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logWithOrder(ctx, order.Code)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"preference_id": preference.ID,
			"total_minor":   int64(order.TotalWithTax),
			"env":           s.mpCreds.Env,
			"elapsed_ms":    time.Since(started).Milliseconds(),
		})
		s.logg.Info(logCtx, "checkout.mercadopago_preference_created")
	}
	s.metrics.IncPaymentOutcome(string(enums.PaymentMethodMercadoPago), "preference_created")

	return &MercadoPagoPreference{
		PreferenceID: preference.ID,
		RedirectURL:  s.redirectURL(preference),
		OrderCode:    order.Code,
		TotalAmount:  order.TotalWithTax,
		CurrencyCode: mercadopago.CurrencyARS,
	}, nil
}

func (s *service) redirectURL(preference *mercadopago.Preference) string {
	if strings.EqualFold(s.mpCreds.Env, config.MercadoPagoEnvProd) {
		return preference.InitPoint
	}
	if preference.SandboxInitPoint != "" {
		return preference.SandboxInitPoint
	}
	return preference.InitPoint
}

// BuildPreference maps the order onto a preference request. Line prices are
// converted to major units here and nowhere else.
func BuildPreference(order *vendure.Order, baseURL string) mercadopago.PreferenceRequest {
	items := make([]mercadopago.PreferenceItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		id := line.ProductVariant.SKU
		if id == "" {
			id = line.ID
		}
		title := line.ProductVariant.Name
		if title == "" {
			title = defaultItemTitle
		}
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items = append(items, mercadopago.PreferenceItem{
			ID:         id,
			Title:      title,
			Quantity:   quantity,
			UnitPrice:  line.LinePriceWithTax.ToMajor().Div(int64(quantity)),
			CurrencyID: mercadopago.CurrencyARS,
		})
	}
	if len(items) == 0 {
		items = append(items, mercadopago.PreferenceItem{
			ID:         order.Code,
			Title:      "Order " + order.Code,
			Quantity:   1,
			UnitPrice:  order.TotalWithTax.ToMajor(),
			CurrencyID: mercadopago.CurrencyARS,
		})
	}

	req := mercadopago.PreferenceRequest{
		Items:             items,
		ExternalReference: order.Code,
		BackURLs: mercadopago.BackURLs{
			Success: fmt.Sprintf("%s/checkout/confirmation/%s", baseURL, url.PathEscape(order.Code)),
			Failure: baseURL + "/checkout?error=payment_failed",
			Pending: fmt.Sprintf("%s/checkout/confirmation/%s?status=pending", baseURL, url.PathEscape(order.Code)),
		},
		NotificationURL: baseURL + "/api/webhooks/mercadopago",
	}
	if order.Customer != nil && strings.TrimSpace(order.Customer.EmailAddress) != "" {
		req.Payer = &mercadopago.PreferencePayer{Email: strings.TrimSpace(order.Customer.EmailAddress)}
	}
	if strings.HasPrefix(baseURL, "https://") {
		req.AutoReturn = mercadopago.AutoReturnApproved
	}
	return req
}

// NormalizeBaseURL trims the storefront URL, drops a trailing slash and adds a
// scheme when missing: http for localhost, https otherwise.
func NormalizeBaseURL(raw string) (string, error) {
	base := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if base == "" {
		return "", pkgerrors.New(pkgerrors.CodeMercadoPagoConfig, "Base URL is not defined for back_urls")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		if strings.Contains(base, "localhost") {
			base = "http://" + base
		} else {
			base = "https://" + base
		}
	}
	return base, nil
}
