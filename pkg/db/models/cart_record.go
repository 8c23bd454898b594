package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// CartRecord is the buyer-scoped mutable cart. Checkout flips it to
// converted instead of deleting it so the snapshot survives.
type CartRecord struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID        `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status          enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Currency        enums.Currency   `gorm:"column:currency;not null;default:'USD'"`
	CheckoutGroupID *uuid.UUID       `gorm:"column:checkout_group_id;type:uuid"`
	ConvertedAt     *time.Time       `gorm:"column:converted_at"`
	Items           []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
