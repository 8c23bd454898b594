package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// Auction is a single-lot listing sold to the highest qualifying bidder.
type Auction struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Title             string              `gorm:"column:title;not null"`
	StartPriceCents   int                 `gorm:"column:start_price_cents;not null"`
	ReservePriceCents *int                `gorm:"column:reserve_price_cents"`
	Status            enums.AuctionStatus `gorm:"column:status;type:auction_status;not null;default:'scheduled'"`
	StartTime         time.Time           `gorm:"column:start_time;not null"`
	EndTime           time.Time           `gorm:"column:end_time;not null;index"`
	WinnerID          *uuid.UUID          `gorm:"column:winner_id;type:uuid"`
	FinalBidCents     *int                `gorm:"column:final_bid_cents"`
	SettledAt         *time.Time          `gorm:"column:settled_at"`
	Bids              []Bid               `gorm:"foreignKey:AuctionID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
