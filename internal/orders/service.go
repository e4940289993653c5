// Package orders serves the order confirmation page and the customer's order
// history from the Vendure Shop API.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/orderstate"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
	"github.com/angelmondragon/storefront-checkout/pkg/vendure"
)

const (
	defaultLimit    = 10
	maxLimit        = 100
	defaultCurrency = "ARS"
	isoMillis       = "2006-01-02T15:04:05.000Z"

	statusFilterCurrent = "current"
	statusFilterUnpaid  = "unpaid"
	statusFilterAll     = "all"

	unauthorizedMarker = "not currently authorized"
)

// Service reads orders for the storefront.
type Service interface {
	OrderByCode(ctx context.Context, session *vendure.Session, code string) (*vendure.Order, error)
	CustomerOrders(ctx context.Context, session *vendure.Session, query ListQuery) (*CustomerOrders, error)
}

type service struct {
	gateway orderstate.Gateway
	logg    *logger.Logger
}

// NewService builds the orders service over the Shop API gateway.
func NewService(gateway orderstate.Gateway, logg *logger.Logger) (Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("vendure gateway required")
	}
	return &service{gateway: gateway, logg: logg}, nil
}

// OrderByCode returns the order for the confirmation page. Vendure only
// returns orders the session owns, so a forbidden answer reads as not found.
func (s *service) OrderByCode(ctx context.Context, session *vendure.Session, code string) (*vendure.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order code is required").
			WithDetails(map[string]string{"code": "is required"})
	}

	res := s.gateway.Execute(ctx, vendure.Request{
		Query:     vendure.OrderByCodeQuery,
		Variables: map[string]any{"code": code},
	}, session)
	if res.HasErrors() {
		if isUnauthorized(res) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, res.FirstMessage("Failed to fetch order")).
			WithTitle("Failed to fetch order").
			WithDetails(res.Errors)
	}

	var data struct {
		Order *vendure.Order `json:"orderByCode"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode order")
	}
	if data.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	return data.Order, nil
}

func (s *service) CustomerOrders(ctx context.Context, session *vendure.Session, query ListQuery) (*CustomerOrders, error) {
	options, page, take := BuildListOptions(query)

	res := s.gateway.Execute(ctx, vendure.Request{
		Query:     vendure.CustomerOrdersQuery,
		Variables: map[string]any{"options": options},
	}, session)
	if res.HasErrors() {
		if isUnauthorized(res) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "You must be logged in to view your orders")
		}
		return nil, pkgerrors.New(pkgerrors.CodeOrdersFetch, res.FirstMessage("Unknown error occurred")).
			WithDetails(res.Errors)
	}

	var data struct {
		Customer *vendure.ActiveCustomer `json:"activeCustomer"`
	}
	if err := res.Decode(&data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode customer orders")
	}

	out := &CustomerOrders{
		Orders:     []UserOrder{},
		Pagination: types.Pagination{CurrentPage: page, Limit: take},
	}
	if data.Customer == nil {
		return out, nil
	}

	for _, order := range data.Customer.Orders.Items {
		out.Orders = append(out.Orders, TransformOrder(order))
	}
	total := data.Customer.Orders.TotalItems
	totalPages := (total + take - 1) / take
	out.Pagination = types.Pagination{
		TotalItems:      total,
		CurrentPage:     page,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
		Limit:           take,
	}
	return out, nil
}

// BuildListOptions maps the account-page filters onto OrderListOptions.
func BuildListOptions(query ListQuery) (map[string]any, int, int) {
	take := query.Limit
	if take <= 0 {
		take = defaultLimit
	}
	if take > maxLimit {
		take = maxLimit
	}
	page := query.Page
	if page < 1 {
		page = 1
	}

	options := map[string]any{
		"take": take,
		"skip": (page - 1) * take,
		"sort": map[string]string{"createdAt": "DESC"},
	}

	switch status := strings.TrimSpace(query.Status); status {
	case "", statusFilterAll:
	case statusFilterCurrent:
		options["filter"] = map[string]any{
			"active": map[string]bool{"eq": true},
			"state": map[string][]enums.OrderState{
				"notIn": {enums.OrderStateDelivered, enums.OrderStateCancelled},
			},
		}
	case statusFilterUnpaid:
		options["filter"] = map[string]any{
			"state": map[string][]enums.OrderState{
				"in": {enums.OrderStateArrangingPayment, enums.OrderStatePaymentAuthorized},
			},
		}
	default:
		options["filter"] = map[string]any{
			"state": map[string]string{"eq": status},
		}
	}
	return options, page, take
}

// TransformOrder builds the account-page view of a Vendure order.
func TransformOrder(order vendure.Order) UserOrder {
	products := make([]OrderProduct, 0, len(order.Lines))
	count := 0
	for _, line := range order.Lines {
		products = append(products, transformLine(line))
		count += line.Quantity
	}

	currency := order.CurrencyCode
	if currency == "" {
		currency = defaultCurrency
	}
	placed := order.PlacedOrCreatedAt()

	return UserOrder{
		ID:              order.ID,
		OrderNumber:     order.Code,
		Timestamp:       placed,
		Status:          order.State.StorefrontStatus(),
		DeliveryDate:    EstimateDeliveryDate(placed, order.State),
		DeliveryAddress: FormatDeliveryAddress(order.ShippingAddress),
		Currency:        currency,
		TotalAmount:     order.TotalWithTax,
		ProductCount:    count,
		Products:        products,
	}
}

func transformLine(line vendure.OrderLine) OrderProduct {
	variant := line.ProductVariant
	name := firstNonEmpty(variant.Product.Name, variant.Name, "Unknown Product")

	asset := line.FeaturedAsset
	if asset == nil {
		asset = variant.FeaturedAsset
	}
	if asset == nil {
		asset = variant.Product.FeaturedAsset
	}

	unit := line.DiscountedUnitPriceWithTax
	if unit == 0 {
		unit = line.UnitPriceWithTax
	}

	product := OrderProduct{
		ID:         line.ID,
		Name:       name,
		Quantity:   line.Quantity,
		UnitPrice:  unit,
		TotalPrice: line.LinePriceWithTax,
	}
	if url := asset.URL(); url != "" {
		product.FeaturedAsset = &AssetPreview{Preview: url}
	}
	return product
}

// EstimateDeliveryDate returns the placement date for delivered orders, two
// days later for shipped ones and a week later otherwise.
func EstimateDeliveryDate(placed string, state enums.OrderState) string {
	if placed == "" {
		return ""
	}
	date, err := time.Parse(time.RFC3339Nano, placed)
	if err != nil {
		return ""
	}
	switch state {
	case enums.OrderStateDelivered:
	case enums.OrderStateShipped, enums.OrderStatePartiallyShipped:
		date = date.AddDate(0, 0, 2)
	default:
		date = date.AddDate(0, 0, 7)
	}
	return date.UTC().Format(isoMillis)
}

// FormatDeliveryAddress joins the non-empty address parts.
func FormatDeliveryAddress(address *vendure.OrderAddress) string {
	const missing = "Address not available"
	if address == nil {
		return missing
	}
	parts := []string{}
	for _, part := range []string{
		address.StreetLine1,
		address.StreetLine2,
		address.City,
		address.Province,
		address.PostalCode,
		address.CountryCode,
	} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return missing
	}
	return strings.Join(parts, ", ")
}

func isUnauthorized(res vendure.Result) bool {
	if res.HasErrorCode("FORBIDDEN") {
		return true
	}
	for _, e := range res.Errors {
		if strings.Contains(e.Message, unauthorizedMarker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
