package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateCheckoutGroup(ctx context.Context, group *models.CheckoutGroup) (*models.CheckoutGroup, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByCheckoutGroup(ctx context.Context, checkoutGroupID uuid.UUID) ([]models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) ([]models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) ([]models.Order, error)
	FindByAuction(ctx context.Context, auctionID uuid.UUID) (*models.Order, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	StampGatewayOrder(ctx context.Context, checkoutGroupID uuid.UUID, gatewayOrderID string) error
	TransitionByGatewayOrder(ctx context.Context, gatewayOrderID string, from []enums.PaymentStatus, updates map[string]any) (int64, error)
	TransitionByPaymentReference(ctx context.Context, reference string, from []enums.PaymentStatus, updates map[string]any) (int64, error)
	TransitionByID(ctx context.Context, orderID uuid.UUID, from []enums.PaymentStatus, updates map[string]any) (int64, error)
}
