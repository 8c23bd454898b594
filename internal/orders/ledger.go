package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/internal/inventory"
	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/outbox"
	"github.com/dmfellows/bidstreet-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TransitionResult reports whether a payment transition changed state.
// Applied is false when every matched order was already in the target
// state, which callers treat as an idempotent no-op.
type TransitionResult struct {
	Applied  bool
	OrderIDs []uuid.UUID
}

// Ledger is the single choke point for order creation and payment
// transitions. Every transition is a conditional write keyed by a
// gateway reference; concurrent or replayed deliveries converge here.
type Ledger interface {
	CreateFromCheckout(ctx context.Context, tx *gorm.DB, input CreateFromCheckoutInput) (*models.Order, error)
	CreateFromAuctionWin(ctx context.Context, tx *gorm.DB, input CreateFromAuctionWinInput) (*models.Order, error)
	StampGatewayOrder(ctx context.Context, checkoutGroupID uuid.UUID, gatewayOrderID string) error
	MarkAuthorized(ctx context.Context, gatewayOrderID, paymentReference string) (TransitionResult, error)
	MarkPaid(ctx context.Context, gatewayOrderID, paymentReference string) (TransitionResult, error)
	MarkFailed(ctx context.Context, gatewayOrderID, reason string) (TransitionResult, error)
	MarkRefunded(ctx context.Context, paymentReference string) (TransitionResult, error)
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
	FindByPaymentReference(ctx context.Context, reference string) ([]models.Order, error)
	FindByCheckoutGroup(ctx context.Context, checkoutGroupID uuid.UUID) ([]models.Order, error)
}

type ledger struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory inventory.Ledger
}

// NewLedger builds the order ledger with its required dependencies.
func NewLedger(repo Repository, tx txRunner, outboxSvc outboxPublisher, inv inventory.Ledger) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	return &ledger{repo: repo, tx: tx, outbox: outboxSvc, inventory: inv}, nil
}

func (l *ledger) CreateFromCheckout(ctx context.Context, tx *gorm.DB, input CreateFromCheckoutInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order creation")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line item")
	}
	if err := validateTotals(input.SubtotalCents, input.DiscountCents, input.TaxCents, input.ShippingCents, input.TotalCents); err != nil {
		return nil, err
	}

	repo := l.repo.WithTx(tx)

	now := time.Now().UTC()
	order := &models.Order{
		ID:              uuid.New(),
		Source:          enums.OrderSourceCart,
		BuyerID:         input.BuyerID,
		SellerID:        input.SellerID,
		CheckoutGroupID: &input.CheckoutGroupID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		Currency:        input.Currency,
		SubtotalCents:   input.SubtotalCents,
		DiscountCents:   input.DiscountCents,
		TaxCents:        input.TaxCents,
		ShippingCents:   input.ShippingCents,
		TotalCents:      input.TotalCents,
		CouponCode:      input.CouponCode,
		ShippingAddress: input.ShippingAddress,
	}

	// Cash on delivery skips the gateway round trip entirely.
	if input.PaymentMethod == enums.PaymentMethodCOD {
		order.Status = enums.OrderStatusConfirmed
		order.ConfirmedAt = &now
	}

	if _, err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	items := make([]models.OrderLineItem, 0, len(input.Items))
	for _, li := range input.Items {
		productID := li.ProductID
		items = append(items, models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			ProductID:      &productID,
			Name:           li.Name,
			ImageURL:       li.ImageURL,
			UnitPriceCents: li.UnitPriceCents,
			Qty:            li.Qty,
			TotalCents:     li.UnitPriceCents * li.Qty,
		})
	}
	if err := repo.CreateOrderLineItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order line items")
	}
	order.Items = items

	return order, nil
}

func (l *ledger) CreateFromAuctionWin(ctx context.Context, tx *gorm.DB, input CreateFromAuctionWinInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for order creation")
	}
	if input.FinalBidCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "final bid must be positive")
	}

	repo := l.repo.WithTx(tx)

	// At most one order per auction. The lookup runs inside the caller's
	// transaction, and the unique auction_id index on auction_wins backs
	// it up under a race.
	if existing, err := repo.FindByAuction(ctx, input.AuctionID); err == nil && existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "auction already settled into an order")
	} else if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check auction order")
	}

	now := time.Now().UTC()
	auctionID := input.AuctionID
	order := &models.Order{
		ID:            uuid.New(),
		Source:        enums.OrderSourceAuction,
		BuyerID:       input.WinnerID,
		SellerID:      input.SellerID,
		AuctionID:     &auctionID,
		Status:        enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusPending,
		PaymentMethod: input.PaymentMethod,
		Currency:      input.Currency,
		SubtotalCents: input.FinalBidCents,
		TotalCents:    input.FinalBidCents,
		ConfirmedAt:   &now,
	}
	if _, err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction order")
	}

	productID := input.ProductID
	item := models.OrderLineItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      &productID,
		Name:           input.Title,
		UnitPriceCents: input.FinalBidCents,
		Qty:            1,
		TotalCents:     input.FinalBidCents,
	}
	if err := repo.CreateOrderLineItems(ctx, []models.OrderLineItem{item}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction line item")
	}
	order.Items = []models.OrderLineItem{item}

	return order, nil
}

func (l *ledger) StampGatewayOrder(ctx context.Context, checkoutGroupID uuid.UUID, gatewayOrderID string) error {
	if gatewayOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}
	if err := l.repo.StampGatewayOrder(ctx, checkoutGroupID, gatewayOrderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp gateway order id")
	}
	return nil
}

func (l *ledger) MarkAuthorized(ctx context.Context, gatewayOrderID, paymentReference string) (TransitionResult, error) {
	var result TransitionResult
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)

		matched, err := repo.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for gateway order")
		}
		if len(matched) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no orders for gateway order")
		}
		if allInPaymentStatus(matched, enums.PaymentStatusAuthorized) {
			result = TransitionResult{Applied: false, OrderIDs: orderIDs(matched)}
			return nil
		}

		if err := l.checkReferenceUnclaimed(ctx, repo, paymentReference, gatewayOrderID); err != nil {
			return err
		}

		rows, err := repo.TransitionByGatewayOrder(ctx, gatewayOrderID,
			[]enums.PaymentStatus{enums.PaymentStatusPending},
			map[string]any{
				"payment_status":    enums.PaymentStatusAuthorized,
				"payment_reference": paymentReference,
				"updated_at":        time.Now().UTC(),
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "authorize orders")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "orders not in an authorizable state")
		}

		result = TransitionResult{Applied: true, OrderIDs: orderIDs(matched)}
		return nil
	})
	return result, err
}

func (l *ledger) MarkPaid(ctx context.Context, gatewayOrderID, paymentReference string) (TransitionResult, error) {
	var result TransitionResult
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		inv := l.inventory.WithTx(tx)

		matched, err := repo.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for gateway order")
		}
		if len(matched) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no orders for gateway order")
		}
		if allInPaymentStatus(matched, enums.PaymentStatusPaid) {
			result = TransitionResult{Applied: false, OrderIDs: orderIDs(matched)}
			return nil
		}

		if err := l.checkReferenceUnclaimed(ctx, repo, paymentReference, gatewayOrderID); err != nil {
			return err
		}

		now := time.Now().UTC()
		rows, err := repo.TransitionByGatewayOrder(ctx, gatewayOrderID,
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusAuthorized},
			map[string]any{
				"payment_status":    enums.PaymentStatusPaid,
				"status":            enums.OrderStatusConfirmed,
				"payment_reference": paymentReference,
				"confirmed_at":      now,
				"updated_at":        now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders paid")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "orders not in a payable state")
		}

		for _, order := range matched {
			for _, item := range order.Items {
				if item.ProductID == nil || item.Qty <= 0 {
					continue
				}
				if err := inv.FinalizeReservation(ctx, *item.ProductID, item.Qty); err != nil {
					return err
				}
			}
			if err := l.emitOrderEvent(ctx, tx, enums.EventPaymentCaptured, order, payloads.OrderConfirmedEvent{
				OrderID:          order.ID,
				BuyerID:          order.BuyerID,
				SellerID:         order.SellerID,
				TotalCents:       order.TotalCents,
				PaymentReference: paymentReference,
				ConfirmedAt:      now,
			}); err != nil {
				return err
			}
		}

		result = TransitionResult{Applied: true, OrderIDs: orderIDs(matched)}
		return nil
	})
	return result, err
}

func (l *ledger) MarkFailed(ctx context.Context, gatewayOrderID, reason string) (TransitionResult, error) {
	var result TransitionResult
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		inv := l.inventory.WithTx(tx)

		matched, err := repo.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for gateway order")
		}
		if len(matched) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no orders for gateway order")
		}
		if allInPaymentStatus(matched, enums.PaymentStatusFailed) {
			result = TransitionResult{Applied: false, OrderIDs: orderIDs(matched)}
			return nil
		}

		now := time.Now().UTC()
		rows, err := repo.TransitionByGatewayOrder(ctx, gatewayOrderID,
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusAuthorized},
			map[string]any{
				"payment_status": enums.PaymentStatusFailed,
				"status":         enums.OrderStatusCancelled,
				"cancelled_at":   now,
				"updated_at":     now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders failed")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "orders not in a failable state")
		}

		for _, order := range matched {
			for _, item := range order.Items {
				if item.ProductID == nil || item.Qty <= 0 {
					continue
				}
				if err := inv.ReleaseReservation(ctx, *item.ProductID, item.Qty); err != nil {
					return err
				}
			}
			if err := l.emitOrderEvent(ctx, tx, enums.EventPaymentFailed, order, payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				SellerID:    order.SellerID,
				Reason:      reason,
				CancelledAt: now,
			}); err != nil {
				return err
			}
		}

		result = TransitionResult{Applied: true, OrderIDs: orderIDs(matched)}
		return nil
	})
	return result, err
}

func (l *ledger) MarkRefunded(ctx context.Context, paymentReference string) (TransitionResult, error) {
	var result TransitionResult
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)

		matched, err := repo.FindByPaymentReference(ctx, paymentReference)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for payment reference")
		}
		if len(matched) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no orders for payment reference")
		}
		if allInPaymentStatus(matched, enums.PaymentStatusRefunded) {
			result = TransitionResult{Applied: false, OrderIDs: orderIDs(matched)}
			return nil
		}

		now := time.Now().UTC()
		rows, err := repo.TransitionByPaymentReference(ctx, paymentReference,
			[]enums.PaymentStatus{enums.PaymentStatusPaid},
			map[string]any{
				"payment_status": enums.PaymentStatusRefunded,
				"status":         enums.OrderStatusRefunded,
				"refunded_at":    now,
				"updated_at":     now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders refunded")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "orders not in a refundable state")
		}

		for _, order := range matched {
			if err := l.emitOrderEvent(ctx, tx, enums.EventOrderRefunded, order, payloads.OrderRefundedEvent{
				OrderID:          order.ID,
				BuyerID:          order.BuyerID,
				SellerID:         order.SellerID,
				AmountCents:      order.TotalCents,
				PaymentReference: paymentReference,
				RefundedAt:       now,
			}); err != nil {
				return err
			}
		}

		result = TransitionResult{Applied: true, OrderIDs: orderIDs(matched)}
		return nil
	})
	return result, err
}

// ExpirePending cancels gateway orders that never saw a webhook before
// the cutoff and returns their reservations to stock.
func (l *ledger) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	expired := 0
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		inv := l.inventory.WithTx(tx)

		stale, err := repo.FindPendingBefore(ctx, cutoff, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stale pending orders")
		}

		now := time.Now().UTC()
		for _, order := range stale {
			rows, err := repo.TransitionByID(ctx, order.ID,
				[]enums.PaymentStatus{enums.PaymentStatusPending},
				map[string]any{
					"status":         enums.OrderStatusCancelled,
					"payment_status": enums.PaymentStatusFailed,
					"cancelled_at":   now,
					"updated_at":     now,
				})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire pending order")
			}
			if rows == 0 {
				// A webhook won the race. Leave it alone.
				continue
			}

			for _, item := range order.Items {
				if item.ProductID == nil || item.Qty <= 0 {
					continue
				}
				if err := inv.ReleaseReservation(ctx, *item.ProductID, item.Qty); err != nil {
					return err
				}
			}

			if err := l.emitOrderEvent(ctx, tx, enums.EventOrderExpired, order, payloads.OrderExpiredEvent{
				OrderID:   order.ID,
				BuyerID:   order.BuyerID,
				SellerID:  order.SellerID,
				ExpiredAt: now,
			}); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	return expired, err
}

func (l *ledger) FindByPaymentReference(ctx context.Context, reference string) ([]models.Order, error) {
	orders, err := l.repo.FindByPaymentReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find orders by payment reference")
	}
	return orders, nil
}

func (l *ledger) FindByCheckoutGroup(ctx context.Context, checkoutGroupID uuid.UUID) ([]models.Order, error) {
	orders, err := l.repo.FindByCheckoutGroup(ctx, checkoutGroupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find orders by checkout group")
	}
	return orders, nil
}

// checkReferenceUnclaimed enforces payment reference uniqueness by
// lookup before write: a reference already attached to a different
// gateway order is a hard conflict.
func (l *ledger) checkReferenceUnclaimed(ctx context.Context, repo Repository, reference, gatewayOrderID string) error {
	if reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	claimed, err := repo.FindByPaymentReference(ctx, reference)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment reference")
	}
	for _, order := range claimed {
		if order.GatewayOrderID == nil || *order.GatewayOrderID != gatewayOrderID {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment reference already claimed by another order")
		}
	}
	return nil
}

func (l *ledger) emitOrderEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order models.Order, data interface{}) error {
	return l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data:          data,
	})
}

func validateTotals(subtotal, discount, tax, shipping, total int) error {
	if subtotal < 0 || discount < 0 || tax < 0 || shipping < 0 || total < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "monetary amounts must be non-negative")
	}
	if discount > subtotal {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
	}
	if total != subtotal-discount+tax+shipping {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total does not reconcile")
	}
	return nil
}

func allInPaymentStatus(orders []models.Order, status enums.PaymentStatus) bool {
	for _, o := range orders {
		if o.PaymentStatus != status {
			return false
		}
	}
	return true
}

func orderIDs(orders []models.Order) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}
