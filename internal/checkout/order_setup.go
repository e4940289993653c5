package checkout

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

// MercadoPagoCardForm returns the public key for the card brick together with
// a fresh checkout session id. The browser mounts one card form per session.
func (s *service) MercadoPagoCardForm(ctx context.Context) (*CardFormConfig, error) {
	if _, err := s.mercadoPagoClient(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.mpCreds.PublicKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMercadoPagoConfig,
			"NEXT_PUBLIC_MERCADOPAGO_PUBLIC_KEY_"+strings.ToUpper(s.mpCreds.Env)+" is not set")
	}
	return &CardFormConfig{
		PublicKey:         s.mpCreds.PublicKey,
		Env:               s.mpCreds.Env,
		CheckoutSessionID: uuid.NewString(),
	}, nil
}

func (s *service) SetCustomer(ctx context.Context, session *vendure.Session, input SetCustomerInput) (*CustomerResult, error) {
	details := map[string]string{}
	if strings.TrimSpace(input.EmailAddress) == "" {
		details["emailAddress"] = "is required"
	}
	if strings.TrimSpace(input.FirstName) == "" {
		details["firstName"] = "is required"
	}
	if strings.TrimSpace(input.LastName) == "" {
		details["lastName"] = "is required"
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	res := s.gateway.Execute(ctx, vendure.Request{
		Query: vendure.SetCustomerForOrderMutation,
		Variables: map[string]any{"input": vendure.CreateCustomerInput{
			FirstName:    strings.TrimSpace(input.FirstName),
			LastName:     strings.TrimSpace(input.LastName),
			EmailAddress: email,
			PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
		}},
	}, session)

	order, err := decodeOrderMutation(res, "setCustomerForOrder", "Failed to set customer")
	if err != nil {
		return nil, err
	}
	result := &CustomerResult{OrderCode: order.Code}
	if order.Customer != nil {
		result.Customer = *order.Customer
	}
	return result, nil
}

// SetAddresses sets the shipping address and, when requested, the billing
// address of the active order.
func (s *service) SetAddresses(ctx context.Context, session *vendure.Session, input SetAddressInput) (*vendure.Order, error) {
	if err := validateAddress("shipping", input.Shipping); err != nil {
		return nil, err
	}
	billing := input.Billing
	if input.BillingSameAsShipping {
		shipping := input.Shipping
		billing = &shipping
	}
	if billing != nil {
		if err := validateAddress("billing", *billing); err != nil {
			return nil, err
		}
	}

	res := s.gateway.Execute(ctx, vendure.Request{
		Query:     vendure.SetOrderShippingAddressMutation,
		Variables: map[string]any{"input": input.Shipping},
	}, session)
	order, err := decodeOrderMutation(res, "setOrderShippingAddress", "Failed to set shipping address")
	if err != nil {
		return nil, err
	}
	if billing == nil {
		return order, nil
	}

	res = s.gateway.Execute(ctx, vendure.Request{
		Query:     vendure.SetOrderBillingAddressMutation,
		Variables: map[string]any{"input": *billing},
	}, session)
	return decodeOrderMutation(res, "setOrderBillingAddress", "Failed to set billing address")
}

func (s *service) ShippingMethods(ctx context.Context, session *vendure.Session) ([]vendure.ShippingMethodQuote, error) {
	res := s.gateway.Execute(ctx, vendure.Request{Query: vendure.EligibleShippingMethodsQuery}, session)
	if res.HasErrors() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, res.FirstMessage("Failed to fetch shipping methods")).
			WithTitle("Failed to fetch shipping methods").
			WithDetails(res.Errors)
	}
	var data struct {
		Methods []vendure.ShippingMethodQuote `json:"eligibleShippingMethods"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode shipping methods")
	}
	if data.Methods == nil {
		data.Methods = []vendure.ShippingMethodQuote{}
	}
	return data.Methods, nil
}

func (s *service) SetShippingMethods(ctx context.Context, session *vendure.Session, ids []string) (*vendure.Order, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one shipping method is required").
			WithDetails(map[string]string{"shippingMethodIds": "is required"})
	}

	res := s.gateway.Execute(ctx, vendure.Request{
		Query:     vendure.SetOrderShippingMethodMutation,
		Variables: map[string]any{"ids": cleaned},
	}, session)
	return decodeOrderMutation(res, "setOrderShippingMethod", "Failed to set shipping method")
}

// decodeOrderMutation unwraps an `Order | ErrorResult` mutation field.
func decodeOrderMutation(res vendure.Result, field, title string) (*vendure.Order, error) {
	if res.HasErrors() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, res.FirstMessage(title)).
			WithTitle(title).
			WithDetails(res.Errors)
	}

	var data map[string]*vendure.OrderResult
	if len(res.Data) > 0 {
		if err := json.Unmarshal(res.Data, &data); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode "+field)
		}
	}
	result := data[field]
	if result.IsOrder() {
		order := result.Order
		return &order, nil
	}
	if result == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, title)
	}

	switch result.TypeName {
	case vendure.TypeNoActiveOrderError:
		return nil, pkgerrors.New(pkgerrors.CodeNoActiveOrder, "Add items to cart before payment")
	case vendure.TypeEmailAddressConflictError:
		return nil, pkgerrors.New(pkgerrors.CodeEmailConflict, firstNonEmpty(result.Message, "Email address is already registered"))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, firstNonEmpty(result.Message, title)).
			WithTitle(title).
			WithDetails(map[string]string{"__typename": result.TypeName, "errorCode": result.ErrorCode})
	}
}

func validateAddress(prefix string, address vendure.CreateAddressInput) error {
	details := map[string]string{}
	if strings.TrimSpace(address.StreetLine1) == "" {
		details[prefix+".streetLine1"] = "is required"
	}
	if strings.TrimSpace(address.CountryCode) == "" {
		details[prefix+".countryCode"] = "is required"
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}
