package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// InventoryItem tracks available/reserved counts per product.
type InventoryItem struct {
	ProductID    uuid.UUID           `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int                 `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int                 `gorm:"column:reserved_qty;not null;default:0"`
	Status       enums.ProductStatus `gorm:"column:status;type:product_status;not null;default:'active'"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
