package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// Coupon is a seller- or platform-scoped discount code.
type Coupon struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string           `gorm:"column:code;not null;uniqueIndex"`
	Type          enums.CouponType `gorm:"column:type;type:coupon_type;not null"`
	Value         int              `gorm:"column:value;not null"`
	MinOrderCents int              `gorm:"column:min_order_cents;not null;default:0"`
	SellerID      *uuid.UUID       `gorm:"column:seller_id;type:uuid"`
	ExpiresAt     *time.Time       `gorm:"column:expires_at"`
	Active        bool             `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
