package mercadopago

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
)

// CurrencyARS is the only currency the Argentine account settles in.
const CurrencyARS = "ARS"

// AutoReturnApproved redirects the buyer back automatically after approval.
const AutoReturnApproved = "approved"

type PreferenceItem struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  money.Major `json:"unit_price"`
	CurrencyID string      `json:"currency_id"`
}

type PreferencePayer struct {
	Email string `json:"email"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest is the body of POST /checkout/preferences.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	Payer             *PreferencePayer `json:"payer,omitempty"`
	ExternalReference string           `json:"external_reference"`
	BackURLs          BackURLs         `json:"back_urls"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
}

// Preference is the subset of the created preference checkout needs.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type PaymentPayer struct {
	Email          string          `json:"email"`
	Identification *Identification `json:"identification,omitempty"`
}

// PaymentRequest is the body of POST /v1/payments.
type PaymentRequest struct {
	Token             string       `json:"token,omitempty"`
	PaymentMethodID   string       `json:"payment_method_id,omitempty"`
	IssuerID          string       `json:"issuer_id,omitempty"`
	Installments      int          `json:"installments"`
	TransactionAmount money.Major  `json:"transaction_amount"`
	ExternalReference string       `json:"external_reference,omitempty"`
	Description       string       `json:"description,omitempty"`
	Payer             PaymentPayer `json:"payer"`
}

// Payment is the subset of a MercadoPago payment checkout reads.
type Payment struct {
	ID                PaymentID                   `json:"id"`
	Status            enums.ProviderPaymentStatus `json:"status"`
	StatusDetail      string                      `json:"status_detail"`
	TransactionAmount money.Major                 `json:"transaction_amount"`
	ExternalReference string                      `json:"external_reference"`
	PaymentMethodID   string                      `json:"payment_method_id"`
	DateApproved      string                      `json:"date_approved,omitempty"`
}

// PaymentID is the numeric payment id, kept as a string.
type PaymentID string

func (p PaymentID) String() string {
	return string(p)
}

// UnmarshalJSON accepts both numeric and string ids.
func (p *PaymentID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PaymentID(s)
		return nil
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
		return fmt.Errorf("invalid payment id %s", trimmed)
	}
	*p = PaymentID(trimmed)
	return nil
}

// ErrorCause is one entry of the cause array of an API error.
type ErrorCause struct {
	Code        any    `json:"code"`
	Description string `json:"description"`
}

// APIError is a non-2xx answer from the MercadoPago API.
type APIError struct {
	StatusCode int          `json:"status"`
	Kind       string       `json:"error"`
	Message    string       `json:"message"`
	Cause      []ErrorCause `json:"cause,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago api error %d: %s", e.StatusCode, e.Message)
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = "Failed to process payment"
	}
	apiErr.StatusCode = status
	return apiErr
}
