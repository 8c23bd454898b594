package auctions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// Repository defines persistence operations for auctions and bids.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	FindExpiredLive(ctx context.Context, asOf time.Time, limit int) ([]models.Auction, error)
	HighestBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
	MarkEnded(ctx context.Context, auctionID uuid.UUID) (int64, error)
	MarkSettled(ctx context.Context, auctionID, winnerID uuid.UUID, finalBidCents int, settledAt time.Time) (int64, error)
	CreateWin(ctx context.Context, win *models.AuctionWin) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an auctions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).
		Where("id = ?", auctionID).
		First(&auction).Error
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// FindExpiredLive returns live auctions whose end time has passed,
// oldest first, capped at limit. Anything past the cap waits for the
// next sweep.
func (r *repository) FindExpiredLive(ctx context.Context, asOf time.Time, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	q := r.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", enums.AuctionStatusLive, asOf).
		Order("end_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&auctions).Error; err != nil {
		return nil, err
	}
	return auctions, nil
}

// HighestBid returns the winning candidate: highest amount, with ties
// broken by earliest placement.
func (r *repository) HighestBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount_cents DESC, placed_at ASC").
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// MarkEnded flips a live auction to ended. RowsAffected is zero when a
// concurrent sweep already claimed it.
func (r *repository) MarkEnded(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status = ?", auctionID, enums.AuctionStatusLive).
		UpdateColumns(map[string]any{
			"status":     enums.AuctionStatusEnded,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// MarkSettled flips a live auction straight to ended with the winner
// recorded, in one conditional write.
func (r *repository) MarkSettled(ctx context.Context, auctionID, winnerID uuid.UUID, finalBidCents int, settledAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ? AND status = ?", auctionID, enums.AuctionStatusLive).
		UpdateColumns(map[string]any{
			"status":          enums.AuctionStatusEnded,
			"winner_id":       winnerID,
			"final_bid_cents": finalBidCents,
			"settled_at":      settledAt,
			"updated_at":      settledAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateWin(ctx context.Context, win *models.AuctionWin) error {
	return r.db.WithContext(ctx).Create(win).Error
}
