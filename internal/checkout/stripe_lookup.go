package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
)

// StripePaymentIntentStatus looks up the intent the browser was redirected
// back with. It is read-only; Vendure records Stripe payments itself.
func (s *service) StripePaymentIntentStatus(ctx context.Context, id string) (*StripeIntentStatus, error) {
	if s.stripeIntents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStripeConfig, "STRIPE_SECRET_KEY is not set")
	}
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "pi_") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment intent id").
			WithDetails(map[string]string{"id": "must be a payment intent id"})
	}

	intent, err := s.stripeIntents.Get(ctx, id)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe payment intent lookup failed")
	}

	status := &StripeIntentStatus{
		ID:       intent.ID,
		Status:   string(intent.Status),
		Amount:   money.Minor(intent.Amount),
		Currency: strings.ToUpper(string(intent.Currency)),
	}
	if intent.Metadata != nil {
		status.OrderCode = intent.Metadata["orderCode"]
	}
	return status, nil
}
