package checkout

import (
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

// PaymentIntentInput selects the provider for POST /payment-intent.
type PaymentIntentInput struct {
	PaymentMethod  enums.PaymentMethod
	IdempotencyKey string
}

// StripePaymentIntent is the payload the Stripe Payment Element needs.
type StripePaymentIntent struct {
	ClientSecret string `json:"clientSecret"`
	OrderCode    string `json:"orderCode"`
}

// MercadoPagoPreference is returned for the MercadoPago flow. TotalAmount is in
// minor units; RedirectURL serves clients that redirect instead of mounting
// the card brick.
type MercadoPagoPreference struct {
	PreferenceID string      `json:"preferenceId"`
	RedirectURL  string      `json:"redirectUrl,omitempty"`
	OrderCode    string      `json:"orderCode"`
	TotalAmount  money.Minor `json:"totalAmount"`
	CurrencyCode string      `json:"currencyCode"`
}

// ProcessPaymentInput is a tokenized card payment submitted by the card brick.
// Amount is in minor units.
type ProcessPaymentInput struct {
	Token                string
	PaymentMethodID      string
	IssuerID             string
	Installments         int
	Email                string
	Amount               money.Minor
	OrderCode            string
	IdentificationType   string
	IdentificationNumber string
	IdempotencyKey       string
}

// ProcessPaymentResult is returned once the payment is attached to the order.
type ProcessPaymentResult struct {
	Success    bool                        `json:"success"`
	PaymentID  string                      `json:"paymentId"`
	Status     enums.ProviderPaymentStatus `json:"status"`
	OrderCode  string                      `json:"orderCode"`
	OrderState enums.OrderState            `json:"orderState"`
}

// CardFormConfig scopes one card-form session to a checkout attempt.
type CardFormConfig struct {
	PublicKey         string `json:"publicKey"`
	Env               string `json:"env"`
	CheckoutSessionID string `json:"checkoutSessionId"`
}

type SetCustomerInput struct {
	FirstName    string
	LastName     string
	EmailAddress string
	PhoneNumber  string
}

// CustomerResult is the order's customer after setCustomerForOrder.
type CustomerResult struct {
	OrderCode string           `json:"orderCode"`
	Customer  vendure.Customer `json:"customer"`
}

type SetAddressInput struct {
	Shipping vendure.CreateAddressInput
	// Billing is used when BillingSameAsShipping is false.
	Billing               *vendure.CreateAddressInput
	BillingSameAsShipping bool
}

// StripeIntentStatus is what the confirmation page shows after a redirect.
type StripeIntentStatus struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Amount    money.Minor `json:"amount"`
	Currency  string      `json:"currency"`
	OrderCode string      `json:"orderCode,omitempty"`
}
