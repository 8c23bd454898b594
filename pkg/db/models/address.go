package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/types"
)

// Address is a buyer-owned shipping address.
type Address struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID   uuid.UUID     `gorm:"column:buyer_id;type:uuid;not null;index"`
	Label     *string       `gorm:"column:label"`
	Address   types.Address `gorm:"column:address;type:address_t"`
	IsDefault bool          `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
