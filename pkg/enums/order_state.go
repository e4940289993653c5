package enums

// OrderState is the Vendure order lifecycle state. Only the subset the storefront
// reasons about is enumerated; unknown states are passed through untouched.
type OrderState string

const (
	OrderStateAddingItems        OrderState = "AddingItems"
	OrderStateArrangingPayment   OrderState = "ArrangingPayment"
	OrderStatePaymentAuthorized  OrderState = "PaymentAuthorized"
	OrderStatePaymentSettled     OrderState = "PaymentSettled"
	OrderStatePartiallyShipped   OrderState = "PartiallyShipped"
	OrderStateShipped            OrderState = "Shipped"
	OrderStatePartiallyDelivered OrderState = "PartiallyDelivered"
	OrderStateDelivered          OrderState = "Delivered"
	OrderStateCancelled          OrderState = "Cancelled"
)

// String implements fmt.Stringer.
func (s OrderState) String() string {
	return string(s)
}

// StorefrontStatus is the simplified order status shown in the customer account.
type StorefrontStatus string

const (
	StorefrontStatusPending   StorefrontStatus = "pending"
	StorefrontStatusOnTheWay  StorefrontStatus = "on-the-way"
	StorefrontStatusShipped   StorefrontStatus = "shipped"
	StorefrontStatusDelivered StorefrontStatus = "delivered"
	StorefrontStatusCancelled StorefrontStatus = "cancelled"
)

// StorefrontStatus maps the backend state onto the customer-facing status.
func (s OrderState) StorefrontStatus() StorefrontStatus {
	switch s {
	case OrderStatePaymentSettled, OrderStatePartiallyShipped, OrderStatePartiallyDelivered:
		return StorefrontStatusOnTheWay
	case OrderStateShipped:
		return StorefrontStatusShipped
	case OrderStateDelivered:
		return StorefrontStatusDelivered
	case OrderStateCancelled:
		return StorefrontStatusCancelled
	default:
		return StorefrontStatusPending
	}
}
