package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionWin records the winning outcome of a settled auction.
// The unique auction_id index makes a second settlement of the same
// auction fail at the database rather than produce a duplicate order.
type AuctionWin struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID   uuid.UUID `gorm:"column:auction_id;type:uuid;not null;uniqueIndex"`
	WinnerID    uuid.UUID `gorm:"column:winner_id;type:uuid;not null;index"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	AmountCents int       `gorm:"column:amount_cents;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
