package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutGroup links a buyer's checkout attempt to the per-seller
// orders it produced.
type CheckoutGroup struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID   uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;index"`
	CartID    *uuid.UUID `gorm:"column:cart_id;type:uuid"`
	Orders    []Order    `gorm:"foreignKey:CheckoutGroupID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
