package gatewaywebhook

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// RefundRepository persists gateway refund lifecycle rows.
type RefundRepository interface {
	WithTx(tx *gorm.DB) RefundRepository
	FindByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*models.Refund, error)
	Create(ctx context.Context, refund *models.Refund) error
	MarkCompleted(ctx context.Context, gatewayRefundID string, completedAt time.Time) (int64, error)
}

type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository builds a refund repository bound to the provided DB.
func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) WithTx(tx *gorm.DB) RefundRepository {
	if tx == nil {
		return r
	}
	return &refundRepository{db: tx}
}

func (r *refundRepository) FindByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).
		Where("gateway_refund_id = ?", gatewayRefundID).
		First(&refund).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// MarkCompleted flips a processing refund to completed. Zero rows
// means it was never created or another delivery already completed it.
func (r *refundRepository) MarkCompleted(ctx context.Context, gatewayRefundID string, completedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("gateway_refund_id = ? AND status = ?", gatewayRefundID, enums.RefundStatusProcessing).
		UpdateColumns(map[string]interface{}{
			"status":       enums.RefundStatusCompleted,
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})
	return res.RowsAffected, res.Error
}
