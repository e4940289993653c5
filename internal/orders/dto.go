package orders

import (
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/money"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// ListQuery carries the raw filters of GET /api/user/orders.
type ListQuery struct {
	Status string
	Limit  int
	Page   int
}

// CustomerOrders is one page of the customer's order history.
type CustomerOrders struct {
	Orders     []UserOrder      `json:"orders"`
	Pagination types.Pagination `json:"pagination"`
}

// UserOrder is the account-page view of an order.
type UserOrder struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	Timestamp       string                 `json:"timestamp"`
	Status          enums.StorefrontStatus `json:"status"`
	DeliveryDate    string                 `json:"deliveryDate,omitempty"`
	DeliveryAddress string                 `json:"deliveryAddress"`
	Currency        string                 `json:"currency"`
	TotalAmount     money.Minor            `json:"totalAmount"`
	ProductCount    int                    `json:"productCount"`
	Products        []OrderProduct         `json:"products"`
}

type OrderProduct struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	FeaturedAsset *AssetPreview `json:"featuredAsset,omitempty"`
	Quantity      int           `json:"quantity"`
	UnitPrice     money.Minor   `json:"unitPrice"`
	TotalPrice    money.Minor   `json:"totalPrice"`
}

type AssetPreview struct {
	Preview string `json:"preview"`
}
