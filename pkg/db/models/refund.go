package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// Refund tracks gateway-initiated refunds against an order.
type Refund struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayRefundID  string             `gorm:"column:gateway_refund_id;not null;uniqueIndex"`
	PaymentReference string             `gorm:"column:payment_reference;not null"`
	AmountCents      int                `gorm:"column:amount_cents;not null"`
	Status           enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'processing'"`
	CompletedAt      *time.Time         `gorm:"column:completed_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
