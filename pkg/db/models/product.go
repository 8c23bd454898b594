package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// Product is the canonical seller listing.
type Product struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID   uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	SKU        string              `gorm:"column:sku;not null"`
	Title      string              `gorm:"column:title;not null"`
	ImageURL   *string             `gorm:"column:image_url"`
	PriceCents int                 `gorm:"column:price_cents;not null"`
	Status     enums.ProductStatus `gorm:"column:status;type:product_status;not null;default:'active'"`
	Inventory  *InventoryItem      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
