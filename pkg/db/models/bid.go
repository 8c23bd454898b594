package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an append-only record of a buyer's offer on an auction.
type Bid struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID   uuid.UUID `gorm:"column:auction_id;type:uuid;not null;index"`
	BidderID    uuid.UUID `gorm:"column:bidder_id;type:uuid;not null"`
	AmountCents int       `gorm:"column:amount_cents;not null"`
	PlacedAt    time.Time `gorm:"column:placed_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
