// Package stripe reads PaymentIntents for the confirmation page. Intents are
// created by Vendure's StripePlugin, so this client never writes.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Secret and restricted key prefixes accepted per environment.
var keyPrefixes = map[string][]string{
	testEnv: {"sk_test_", "rk_test_"},
	liveEnv: {"sk_live_", "rk_live_"},
}

// PaymentIntentReader exposes the PaymentIntent lookup used by the confirmation page.
type PaymentIntentReader interface {
	Get(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// Client is a per-instance Stripe client. It does not touch the package-level
// stripe.Key.
type Client struct {
	api         *stripe.Client
	environment string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	return &Client{api: stripe.NewClient(apiKey), environment: env}, nil
}

// NewPaymentIntentReader returns nil when Stripe is not configured so callers
// can report the lookup as unavailable.
func NewPaymentIntentReader(c *Client) PaymentIntentReader {
	if c == nil {
		return nil
	}
	return c
}

// Get retrieves one PaymentIntent by id.
func (c *Client) Get(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if c == nil || c.api == nil {
		return nil, errAPIKeyRequired
	}
	return c.api.V1PaymentIntents.Retrieve(ctx, id, &stripe.PaymentIntentRetrieveParams{})
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func normalizeEnv(raw string) (string, error) {
	env := strings.ToLower(strings.TrimSpace(raw))
	if env == "" {
		return testEnv, nil
	}
	if _, ok := keyPrefixes[env]; !ok {
		return "", errInvalidStripeEnv
	}
	return env, nil
}

func validateAPIKey(env, key string) error {
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return errInvalidStripeEnv
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires a key starting with %s", env, strings.Join(prefixes, " or "))
}
