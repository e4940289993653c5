package checkout

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

type setCustomerRequest struct {
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	EmailAddress string `json:"emailAddress" validate:"required,email"`
	PhoneNumber  string `json:"phoneNumber"`
}

// SetCustomer attaches guest customer details to the active order.
func SetCustomer(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload setCustomerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := vendure.SessionFromRequest(r)
		result, err := svc.SetCustomer(r.Context(), session, checkoutsvc.SetCustomerInput{
			FirstName:    payload.FirstName,
			LastName:     payload.LastName,
			EmailAddress: payload.EmailAddress,
			PhoneNumber:  payload.PhoneNumber,
		})
		respond(w, r, logg, session, result, err)
	}
}

type setAddressRequest struct {
	Shipping              vendure.CreateAddressInput  `json:"shippingAddress"`
	Billing               *vendure.CreateAddressInput `json:"billingAddress"`
	BillingSameAsShipping bool                        `json:"billingSameAsShipping"`
}

// SetShippingAddress sets the shipping address and, when given, the billing one.
func SetShippingAddress(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload setAddressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := vendure.SessionFromRequest(r)
		order, err := svc.SetAddresses(r.Context(), session, checkoutsvc.SetAddressInput{
			Shipping:              payload.Shipping,
			Billing:               payload.Billing,
			BillingSameAsShipping: payload.BillingSameAsShipping,
		})
		respond(w, r, logg, session, order, err)
	}
}

// ShippingMethods lists the shipping methods eligible for the active order.
func ShippingMethods(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		session := vendure.SessionFromRequest(r)
		methods, err := svc.ShippingMethods(r.Context(), session)
		respond(w, r, logg, session, map[string]any{"shippingMethods": methods}, err)
	}
}

type setShippingMethodRequest struct {
	ShippingMethodIDs []string `json:"shippingMethodIds" validate:"required,min=1"`
}

func SetShippingMethod(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload setShippingMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session := vendure.SessionFromRequest(r)
		order, err := svc.SetShippingMethods(r.Context(), session, payload.ShippingMethodIDs)
		respond(w, r, logg, session, order, err)
	}
}
