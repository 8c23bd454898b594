package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderCreatedEvent signals a new checkout split across sellers.
type OrderCreatedEvent struct {
	CheckoutGroupID uuid.UUID   `json:"checkout_group_id"`
	BuyerID         uuid.UUID   `json:"buyer_id"`
	OrderIDs        []uuid.UUID `json:"order_ids"`
	PaymentMethod   string      `json:"payment_method"`
}

// OrderConfirmedEvent is emitted when a payment capture confirms an order.
type OrderConfirmedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	PaymentReference string    `json:"payment_reference"`
	TotalCents       int       `json:"total_cents"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// OrderCancelledEvent is emitted when a payment failure cancels an order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderRefundedEvent is emitted when a refund flips an order to refunded.
type OrderRefundedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	AmountCents      int       `json:"amount_cents"`
	PaymentReference string    `json:"payment_reference"`
	RefundedAt       time.Time `json:"refunded_at"`
}

// RefundCompletedEvent is emitted when the gateway reports a refund done.
type RefundCompletedEvent struct {
	RefundID        uuid.UUID `json:"refund_id"`
	OrderID         uuid.UUID `json:"order_id"`
	GatewayRefundID string    `json:"gateway_refund_id"`
	AmountCents     int       `json:"amount_cents"`
	CompletedAt     time.Time `json:"completed_at"`
}

// OrderExpiredEvent describes the payload when pending orders expire.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// AuctionSettledEvent announces a winner and the order it produced.
type AuctionSettledEvent struct {
	AuctionID     uuid.UUID `json:"auction_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	WinnerID      uuid.UUID `json:"winner_id"`
	OrderID       uuid.UUID `json:"order_id"`
	FinalBidCents int       `json:"final_bid_cents"`
	SettledAt     time.Time `json:"settled_at"`
}

// AuctionEndedEvent covers the two no-winner terminals; the event type
// distinguishes no-bids from reserve-not-met.
type AuctionEndedEvent struct {
	AuctionID    uuid.UUID `json:"auction_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	HighestBid   *int      `json:"highest_bid_cents,omitempty"`
	ReservePrice *int      `json:"reserve_price_cents,omitempty"`
	EndedAt      time.Time `json:"ended_at"`
}
