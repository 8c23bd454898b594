package checkout

import (
	"github.com/google/uuid"
)

// ItemInput is one line of a seller group as submitted at checkout.
// Name, image, and price are the snapshot captured when the item was
// added to the cart.
type ItemInput struct {
	ProductID  uuid.UUID `json:"productId" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,gt=0"`
	PriceCents int       `json:"price" validate:"gte=0"`
	Name       string    `json:"name" validate:"required"`
	ImageURL   *string   `json:"image,omitempty"`
}

// ShopOrderInput is one seller's slice of the checkout.
type ShopOrderInput struct {
	SellerID uuid.UUID   `json:"shopId" validate:"required"`
	Items    []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// CheckoutInput is the full checkout request for one buyer.
type CheckoutInput struct {
	ShippingAddressID uuid.UUID        `json:"shippingAddressId" validate:"required"`
	PaymentMethod     string           `json:"paymentMethod" validate:"required,oneof=cod gateway"`
	CouponCode        *string          `json:"couponCode,omitempty"`
	ShopOrders        []ShopOrderInput `json:"shopOrders" validate:"required,min=1,dive"`
}

// CheckoutResult reports the orders created by one checkout. The
// gateway order id is only present for gateway payments.
type CheckoutResult struct {
	CheckoutGroupID uuid.UUID   `json:"checkoutGroupId"`
	OrderIDs        []uuid.UUID `json:"orderIds"`
	GatewayOrderID  *string     `json:"gatewayOrderId,omitempty"`
}
