package gatewaywebhook

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/internal/orders"
	dbpkg "github.com/dmfellows/bidstreet-backend/pkg/db"
	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
	"github.com/dmfellows/bidstreet-backend/pkg/outbox"
	"github.com/dmfellows/bidstreet-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type dedupeGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Event is the envelope the payment gateway delivers.
type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

// EventData carries the payment- or refund-shaped body of an event.
type EventData struct {
	GatewayOrderID   string      `json:"gateway_order_id,omitempty"`
	PaymentReference string      `json:"payment_reference,omitempty"`
	Reason           string      `json:"reason,omitempty"`
	Refund           *RefundData `json:"refund,omitempty"`
}

// RefundData is the refund object nested in refund.* events.
type RefundData struct {
	GatewayRefundID  string `json:"gateway_refund_id"`
	PaymentReference string `json:"payment_reference"`
	AmountCents      int    `json:"amount_cents"`
}

type ServiceParams struct {
	Orders            orders.Ledger
	Refunds           RefundRepository
	TransactionRunner txRunner
	Outbox            outboxPublisher
	Guard             dedupeGuard
	Logger            *logger.Logger
}

// Service reconciles gateway payment events against the order ledger.
// Every handler is idempotent: redelivered events either short-circuit
// on the Redis guard or collapse into a no-op inside the ledger.
type Service struct {
	orders   orders.Ledger
	refunds  RefundRepository
	txRunner txRunner
	outbox   outboxPublisher
	guard    dedupeGuard
	logger   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order ledger required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund repository required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:   params.Orders,
		refunds:  params.Refunds,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		guard:    params.Guard,
		logger:   params.Logger,
	}, nil
}

// HandleEvent dispatches one verified gateway event. A nil return means
// the delivery should be acknowledged; that includes duplicates and
// transitions the ledger reports as already applied.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}
	if event.EventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event id required")
	}

	ctx = s.logger.WithField(ctx, "gateway_event_id", event.EventID)

	seen, err := s.guard.CheckAndMark(ctx, event.EventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	if seen {
		s.logger.Info(ctx, "duplicate gateway event acknowledged")
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeStateConflict {
			// The order already moved past this transition, usually a
			// late or out-of-order delivery. Acknowledge it.
			s.logger.Warn(ctx, "gateway event arrived after a conflicting transition")
			return nil
		}
		// Unmark so the gateway's retry can reprocess the event.
		if delErr := s.guard.Delete(ctx, event.EventID); delErr != nil {
			s.logger.Error(ctx, "failed to clear webhook idempotency mark", delErr)
		}
		return err
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *Event) error {
	switch strings.ToLower(event.Type) {
	case "payment.authorized":
		_, err := s.orders.MarkAuthorized(ctx, event.Data.GatewayOrderID, event.Data.PaymentReference)
		return err
	case "payment.captured", "order.paid":
		_, err := s.orders.MarkPaid(ctx, event.Data.GatewayOrderID, event.Data.PaymentReference)
		return err
	case "payment.failed":
		_, err := s.orders.MarkFailed(ctx, event.Data.GatewayOrderID, event.Data.Reason)
		return err
	case "refund.created":
		return s.handleRefundCreated(ctx, event.Data.Refund)
	case "refund.processed":
		return s.handleRefundProcessed(ctx, event.Data.Refund)
	default:
		s.logger.Info(ctx, "ignoring unhandled gateway event type "+event.Type)
		return nil
	}
}

func (s *Service) handleRefundCreated(ctx context.Context, refund *RefundData) error {
	if refund == nil || refund.GatewayRefundID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
	}

	matched, err := s.orders.FindByPaymentReference(ctx, refund.PaymentReference)
	if err != nil {
		return err
	}
	if len(matched) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no order matches refund payment reference")
	}

	// The order does not move yet. Orders transition to refunded only
	// once the gateway reports the refund processed.
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.refunds.WithTx(tx)
		if _, err := repo.FindByGatewayRefundID(ctx, refund.GatewayRefundID); err == nil {
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check refund")
		}
		return repo.Create(ctx, &models.Refund{
			ID:               uuid.New(),
			OrderID:          matched[0].ID,
			GatewayRefundID:  refund.GatewayRefundID,
			PaymentReference: refund.PaymentReference,
			AmountCents:      refund.AmountCents,
			Status:           enums.RefundStatusProcessing,
		})
	})
	// Two deliveries with distinct event ids can race past the guard;
	// the second insert loses on the unique index and is a replay.
	if err != nil && dbpkg.IsUniqueViolation(err, "idx_refunds_gateway_refund_id") {
		return nil
	}
	return err
}

func (s *Service) handleRefundProcessed(ctx context.Context, refund *RefundData) error {
	if refund == nil || refund.GatewayRefundID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
	}

	stored, err := s.refunds.FindByGatewayRefundID(ctx, refund.GatewayRefundID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
	}

	// Transition the orders before completing the refund record. If the
	// completion write fails the redelivery retries both: MarkRefunded
	// collapses into a no-op once the orders are refunded.
	if _, err := s.orders.MarkRefunded(ctx, stored.PaymentReference); err != nil {
		return err
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.refunds.WithTx(tx)
		now := time.Now().UTC()
		rows, err := repo.MarkCompleted(ctx, refund.GatewayRefundID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete refund")
		}
		if rows == 0 {
			// Already completed by an earlier delivery.
			return nil
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   stored.OrderID,
			Data: payloads.RefundCompletedEvent{
				RefundID:        stored.ID,
				OrderID:         stored.OrderID,
				GatewayRefundID: stored.GatewayRefundID,
				AmountCents:     stored.AmountCents,
				CompletedAt:     now,
			},
		})
	})
}
