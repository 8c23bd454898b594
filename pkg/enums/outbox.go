package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateCheckoutGroup OutboxAggregateType = "checkout_group"
	AggregateAuction       OutboxAggregateType = "auction"
	AggregateRefund        OutboxAggregateType = "refund"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateCheckoutGroup,
	AggregateAuction,
	AggregateRefund,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated             OutboxEventType = "order_created"
	EventOrderConfirmed           OutboxEventType = "order_confirmed"
	EventOrderCancelled           OutboxEventType = "order_cancelled"
	EventOrderRefunded            OutboxEventType = "order_refunded"
	EventOrderExpired             OutboxEventType = "order_expired"
	EventPaymentCaptured          OutboxEventType = "payment_captured"
	EventPaymentFailed            OutboxEventType = "payment_failed"
	EventAuctionSettled           OutboxEventType = "auction_settled"
	EventAuctionEndedNoBids       OutboxEventType = "auction_ended_no_bids"
	EventAuctionEndedReserveUnmet OutboxEventType = "auction_ended_reserve_not_met"
	EventRefundCompleted          OutboxEventType = "refund_completed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderCancelled,
	EventOrderRefunded,
	EventOrderExpired,
	EventPaymentCaptured,
	EventPaymentFailed,
	EventAuctionSettled,
	EventAuctionEndedNoBids,
	EventAuctionEndedReserveUnmet,
	EventRefundCompleted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
