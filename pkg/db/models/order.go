package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	"github.com/dmfellows/bidstreet-backend/pkg/types"
)

// Order is the per-seller order produced by checkout or auction settlement.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Source           enums.OrderSource   `gorm:"column:source;type:order_source;not null"`
	BuyerID          uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID         uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	CheckoutGroupID  *uuid.UUID          `gorm:"column:checkout_group_id;type:uuid;index"`
	AuctionID        *uuid.UUID          `gorm:"column:auction_id;type:uuid;index"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalCents    int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents    int                 `gorm:"column:discount_cents;not null;default:0"`
	TaxCents         int                 `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents    int                 `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents       int                 `gorm:"column:total_cents;not null"`
	CouponCode       *string             `gorm:"column:coupon_code"`
	GatewayOrderID   *string             `gorm:"column:gateway_order_id;index"`
	PaymentReference *string             `gorm:"column:payment_reference;index"`
	ShippingAddress  *types.Address      `gorm:"column:shipping_address;type:address_t"`
	ConfirmedAt      *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	RefundedAt       *time.Time          `gorm:"column:refunded_at"`
	Items            []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
