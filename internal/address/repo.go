package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
)

// Repository manages the buyer address book.
type Repository interface {
	FindByID(ctx context.Context, addressID uuid.UUID) (*models.Address, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, addr *models.Address) error
	Delete(ctx context.Context, addressID, buyerID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, addressID uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := r.db.WithContext(ctx).
		Where("id = ?", addressID).
		First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Address, error) {
	var addrs []models.Address
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at ASC").
		Find(&addrs).Error
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

func (r *repository) Create(ctx context.Context, addr *models.Address) error {
	return r.db.WithContext(ctx).Create(addr).Error
}

// Delete removes an address only when the caller owns it.
func (r *repository) Delete(ctx context.Context, addressID, buyerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND buyer_id = ?", addressID, buyerID).
		Delete(&models.Address{})
	return res.RowsAffected, res.Error
}
