package vendure

import (
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
)

// Union member names returned in __typename.
const (
	TypeOrder                     = "Order"
	TypeOrderStateTransitionError = "OrderStateTransitionError"
	TypePaymentDeclinedError      = "PaymentDeclinedError"
	TypePaymentFailedError        = "PaymentFailedError"
	TypeOrderPaymentStateError    = "OrderPaymentStateError"
	TypeNoActiveOrderError        = "NoActiveOrderError"
	TypeEmailAddressConflictError = "EmailAddressConflictError"
)

// Order is the checkout view of a Vendure order. Amounts are minor units.
type Order struct {
	TypeName        string           `json:"__typename,omitempty"`
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	State           enums.OrderState `json:"state"`
	Active          bool             `json:"active"`
	CreatedAt       string           `json:"createdAt,omitempty"`
	OrderPlacedAt   string           `json:"orderPlacedAt,omitempty"`
	CurrencyCode    string           `json:"currencyCode"`
	SubTotalWithTax money.Minor      `json:"subTotalWithTax"`
	ShippingWithTax money.Minor      `json:"shippingWithTax"`
	TotalWithTax    money.Minor      `json:"totalWithTax"`
	TotalQuantity   int              `json:"totalQuantity"`
	Customer        *Customer        `json:"customer,omitempty"`
	ShippingAddress *OrderAddress    `json:"shippingAddress,omitempty"`
	BillingAddress  *OrderAddress    `json:"billingAddress,omitempty"`
	Lines           []OrderLine      `json:"lines"`
	Payments        []Payment        `json:"payments,omitempty"`
	ShippingLines   []ShippingLine   `json:"shippingLines,omitempty"`
}

// PlacedOrCreatedAt returns the placement timestamp, falling back to creation.
func (o Order) PlacedOrCreatedAt() string {
	if o.OrderPlacedAt != "" {
		return o.OrderPlacedAt
	}
	return o.CreatedAt
}

type Customer struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
}

type OrderAddress struct {
	FullName    string `json:"fullName,omitempty"`
	Company     string `json:"company,omitempty"`
	StreetLine1 string `json:"streetLine1,omitempty"`
	StreetLine2 string `json:"streetLine2,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type Asset struct {
	ID      string `json:"id,omitempty"`
	Preview string `json:"preview,omitempty"`
	Source  string `json:"source,omitempty"`
}

// URL prefers the preview rendition.
func (a *Asset) URL() string {
	if a == nil {
		return ""
	}
	if a.Preview != "" {
		return a.Preview
	}
	return a.Source
}

type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	FeaturedAsset *Asset `json:"featuredAsset,omitempty"`
}

type ProductVariant struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	SKU           string  `json:"sku"`
	FeaturedAsset *Asset  `json:"featuredAsset,omitempty"`
	Product       Product `json:"product"`
}

type OrderLine struct {
	ID                         string         `json:"id"`
	Quantity                   int            `json:"quantity"`
	UnitPriceWithTax           money.Minor    `json:"unitPriceWithTax"`
	DiscountedUnitPriceWithTax money.Minor    `json:"discountedUnitPriceWithTax"`
	LinePriceWithTax           money.Minor    `json:"linePriceWithTax"`
	FeaturedAsset              *Asset         `json:"featuredAsset,omitempty"`
	ProductVariant             ProductVariant `json:"productVariant"`
}

type Payment struct {
	ID            string         `json:"id"`
	Method        string         `json:"method"`
	Amount        money.Minor    `json:"amount"`
	State         string         `json:"state"`
	TransactionID string         `json:"transactionId,omitempty"`
	ErrorMessage  string         `json:"errorMessage,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type ShippingMethodRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type ShippingLine struct {
	ShippingMethod ShippingMethodRef `json:"shippingMethod"`
	PriceWithTax   money.Minor       `json:"priceWithTax"`
}

// ShippingMethodQuote is an eligible shipping method for the active order.
type ShippingMethodQuote struct {
	ID           string      `json:"id"`
	Code         string      `json:"code"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Price        money.Minor `json:"price"`
	PriceWithTax money.Minor `json:"priceWithTax"`
}

// ErrorResult holds the fields shared by Vendure's typed mutation errors.
type ErrorResult struct {
	ErrorCode           string `json:"errorCode,omitempty"`
	Message             string `json:"message,omitempty"`
	TransitionError     string `json:"transitionError,omitempty"`
	FromState           string `json:"fromState,omitempty"`
	ToState             string `json:"toState,omitempty"`
	PaymentErrorMessage string `json:"paymentErrorMessage,omitempty"`
}

// OrderResult decodes an `Order | ErrorResult` union.
type OrderResult struct {
	Order
	ErrorResult
}

// IsOrder reports whether the union resolved to an Order.
func (r *OrderResult) IsOrder() bool {
	return r != nil && r.TypeName == TypeOrder
}

// CustomerOrderList is the paginated order history of the active customer.
type CustomerOrderList struct {
	TotalItems int     `json:"totalItems"`
	Items      []Order `json:"items"`
}

// ActiveCustomer is the authenticated customer and their orders.
type ActiveCustomer struct {
	Customer
	Orders CustomerOrderList `json:"orders"`
}

// CreateAddressInput mirrors Vendure's CreateAddressInput.
type CreateAddressInput struct {
	FullName    string `json:"fullName,omitempty"`
	Company     string `json:"company,omitempty"`
	StreetLine1 string `json:"streetLine1"`
	StreetLine2 string `json:"streetLine2,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	CountryCode string `json:"countryCode"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// CreateCustomerInput mirrors Vendure's CreateCustomerInput.
type CreateCustomerInput struct {
	Title        string `json:"title,omitempty"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
}

// PaymentInput mirrors Vendure's PaymentInput.
type PaymentInput struct {
	Method   string         `json:"method"`
	Metadata map[string]any `json:"metadata"`
}
