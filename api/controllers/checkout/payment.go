// Package checkout exposes the /api/checkout routes. Every handler relays the
// Set-Cookie values Vendure returned, on success and on error.
package checkout

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

const idempotencyHeader = "Idempotency-Key"

type paymentIntentRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

// PaymentIntent creates a Stripe PaymentIntent or a MercadoPago preference for
// the active order. An empty or malformed body selects Stripe.
func PaymentIntent(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload paymentIntentRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := vendure.SessionFromRequest(r)
		result, err := svc.CreatePaymentIntent(r.Context(), session, checkoutsvc.PaymentIntentInput{
			PaymentMethod:  enums.PaymentMethod(strings.ToLower(strings.TrimSpace(payload.PaymentMethod))),
			IdempotencyKey: idempotencyKey(r),
		})
		respond(w, r, logg, session, result, err)
	}
}

// MercadoPagoPreference creates a checkout preference for the active order.
func MercadoPagoPreference(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		session := vendure.SessionFromRequest(r)
		pref, err := svc.CreateMercadoPagoPreference(r.Context(), session, idempotencyKey(r))
		respond(w, r, logg, session, pref, err)
	}
}

type processPaymentRequest struct {
	Token                string         `json:"token" validate:"required_without=PaymentMethodID"`
	PaymentMethodID      string         `json:"paymentMethodId"`
	IssuerID             flexibleString `json:"issuerId"`
	Installments         int            `json:"installments" validate:"gte=0"`
	Email                string         `json:"email" validate:"required,email"`
	Amount               money.Minor    `json:"amount" validate:"gt=0"`
	OrderCode            string         `json:"orderCode" validate:"required"`
	IdentificationType   string         `json:"identificationType"`
	IdentificationNumber flexibleString `json:"identificationNumber"`
}

// ProcessMercadoPagoPayment charges the tokenized card and attaches the
// payment to the order.
func ProcessMercadoPagoPayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload processPaymentRequest
		if err := validators.DecodePermissiveJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := vendure.SessionFromRequest(r)
		result, err := svc.ProcessMercadoPagoPayment(r.Context(), session, checkoutsvc.ProcessPaymentInput{
			Token:                payload.Token,
			PaymentMethodID:      payload.PaymentMethodID,
			IssuerID:             string(payload.IssuerID),
			Installments:         payload.Installments,
			Email:                payload.Email,
			Amount:               payload.Amount,
			OrderCode:            payload.OrderCode,
			IdentificationType:   payload.IdentificationType,
			IdentificationNumber: string(payload.IdentificationNumber),
			IdempotencyKey:       idempotencyKey(r),
		})
		respond(w, r, logg, session, result, err)
	}
}

// MercadoPagoConfig returns the public key and a fresh card-form session id.
func MercadoPagoConfig(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		cfg, err := svc.MercadoPagoCardForm(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, cfg)
	}
}

// StripePaymentIntentStatus reports a PaymentIntent for the confirmation page.
// The id comes from the path or the payment_intent query parameter Stripe
// appends to the return URL.
func StripePaymentIntentStatus(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			id = strings.TrimSpace(r.URL.Query().Get("payment_intent"))
		}

		status, err := svc.StripePaymentIntentStatus(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(idempotencyHeader))
}

// respond relays the session cookies and writes the result or the error.
func respond(w http.ResponseWriter, r *http.Request, logg *logger.Logger, session *vendure.Session, payload any, err error) {
	responses.ForwardCookies(w, session.SetCookies())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, payload)
}
