package gatewaywebhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/internal/orders"
	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
	"github.com/dmfellows/bidstreet-backend/pkg/outbox"
)

func setupRefundTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  gateway_refund_id TEXT NOT NULL UNIQUE,
  payment_reference TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'processing',
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)

	t.Cleanup(func() {
		db.Exec("DELETE FROM refunds")
	})

	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

type fakeGuard struct {
	seen    map[string]bool
	deleted []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{seen: map[string]bool{}}
}

func (g *fakeGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *fakeGuard) Delete(_ context.Context, eventID string) error {
	delete(g.seen, eventID)
	g.deleted = append(g.deleted, eventID)
	return nil
}

type ledgerCall struct {
	method    string
	reference string
	detail    string
}

type fakeLedger struct {
	calls      []ledgerCall
	matched    []models.Order
	markErr    error
	transition orders.TransitionResult
}

func (f *fakeLedger) CreateFromCheckout(context.Context, *gorm.DB, orders.CreateFromCheckoutInput) (*models.Order, error) {
	return nil, nil
}

func (f *fakeLedger) CreateFromAuctionWin(context.Context, *gorm.DB, orders.CreateFromAuctionWinInput) (*models.Order, error) {
	return nil, nil
}

func (f *fakeLedger) StampGatewayOrder(context.Context, uuid.UUID, string) error { return nil }

func (f *fakeLedger) MarkAuthorized(_ context.Context, gatewayOrderID, paymentReference string) (orders.TransitionResult, error) {
	f.calls = append(f.calls, ledgerCall{method: "MarkAuthorized", reference: gatewayOrderID, detail: paymentReference})
	return f.transition, f.markErr
}

func (f *fakeLedger) MarkPaid(_ context.Context, gatewayOrderID, paymentReference string) (orders.TransitionResult, error) {
	f.calls = append(f.calls, ledgerCall{method: "MarkPaid", reference: gatewayOrderID, detail: paymentReference})
	return f.transition, f.markErr
}

func (f *fakeLedger) MarkFailed(_ context.Context, gatewayOrderID, reason string) (orders.TransitionResult, error) {
	f.calls = append(f.calls, ledgerCall{method: "MarkFailed", reference: gatewayOrderID, detail: reason})
	return f.transition, f.markErr
}

func (f *fakeLedger) MarkRefunded(_ context.Context, paymentReference string) (orders.TransitionResult, error) {
	f.calls = append(f.calls, ledgerCall{method: "MarkRefunded", reference: paymentReference})
	return f.transition, f.markErr
}

func (f *fakeLedger) ExpirePending(context.Context, time.Time, int) (int, error) { return 0, nil }

func (f *fakeLedger) FindByPaymentReference(context.Context, string) ([]models.Order, error) {
	return f.matched, nil
}

func (f *fakeLedger) FindByCheckoutGroup(context.Context, uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

type webhookFixture struct {
	svc    *Service
	ledger *fakeLedger
	guard  *fakeGuard
	outbox *recordingOutbox
	db     *gorm.DB
}

func newWebhookFixture(t *testing.T, db *gorm.DB) *webhookFixture {
	t.Helper()

	ledger := &fakeLedger{transition: orders.TransitionResult{Applied: true}}
	guard := newFakeGuard()
	outboxRec := &recordingOutbox{}

	svc, err := NewService(ServiceParams{
		Orders:            ledger,
		Refunds:           NewRefundRepository(db),
		TransactionRunner: gormTxRunner{db: db},
		Outbox:            outboxRec,
		Guard:             guard,
		Logger:            logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)

	return &webhookFixture{svc: svc, ledger: ledger, guard: guard, outbox: outboxRec, db: db}
}

func TestHandleEventDispatchesPaymentTransitions(t *testing.T) {
	cases := []struct {
		eventType string
		method    string
	}{
		{"payment.authorized", "MarkAuthorized"},
		{"payment.captured", "MarkPaid"},
		{"order.paid", "MarkPaid"},
		{"payment.failed", "MarkFailed"},
	}

	for _, tc := range cases {
		t.Run(tc.eventType, func(t *testing.T) {
			fix := newWebhookFixture(t, setupRefundTestDB(t))
			err := fix.svc.HandleEvent(context.Background(), &Event{
				EventID: "evt-" + tc.eventType,
				Type:    tc.eventType,
				Data: EventData{
					GatewayOrderID:   "gw_1",
					PaymentReference: "pay_1",
					Reason:           "card_declined",
				},
			})
			require.NoError(t, err)
			require.Len(t, fix.ledger.calls, 1)
			assert.Equal(t, tc.method, fix.ledger.calls[0].method)
			assert.Equal(t, "gw_1", fix.ledger.calls[0].reference)
		})
	}
}

func TestHandleEventDuplicateShortCircuits(t *testing.T) {
	fix := newWebhookFixture(t, setupRefundTestDB(t))

	event := &Event{EventID: "evt-dup", Type: "payment.captured", Data: EventData{GatewayOrderID: "gw_1", PaymentReference: "pay_1"}}
	require.NoError(t, fix.svc.HandleEvent(context.Background(), event))
	require.NoError(t, fix.svc.HandleEvent(context.Background(), event))

	assert.Len(t, fix.ledger.calls, 1)
}

func TestHandleEventUnknownTypeAcknowledged(t *testing.T) {
	fix := newWebhookFixture(t, setupRefundTestDB(t))

	err := fix.svc.HandleEvent(context.Background(), &Event{EventID: "evt-x", Type: "dispute.opened"})
	require.NoError(t, err)
	assert.Empty(t, fix.ledger.calls)
}

func TestHandleEventStateConflictAcknowledged(t *testing.T) {
	fix := newWebhookFixture(t, setupRefundTestDB(t))
	fix.ledger.markErr = pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending")

	err := fix.svc.HandleEvent(context.Background(), &Event{
		EventID: "evt-late",
		Type:    "payment.captured",
		Data:    EventData{GatewayOrderID: "gw_1", PaymentReference: "pay_1"},
	})
	require.NoError(t, err)
	// The mark stays so the gateway's redelivery is absorbed too.
	assert.Empty(t, fix.guard.deleted)
}

func TestHandleEventFailureClearsIdempotencyMark(t *testing.T) {
	fix := newWebhookFixture(t, setupRefundTestDB(t))
	fix.ledger.markErr = pkgerrors.New(pkgerrors.CodeDependency, "db down")

	err := fix.svc.HandleEvent(context.Background(), &Event{
		EventID: "evt-retry",
		Type:    "payment.captured",
		Data:    EventData{GatewayOrderID: "gw_1", PaymentReference: "pay_1"},
	})
	require.Error(t, err)
	assert.Contains(t, fix.guard.deleted, "evt-retry")

	// A retry of the same delivery reaches the ledger again.
	fix.ledger.markErr = nil
	require.NoError(t, fix.svc.HandleEvent(context.Background(), &Event{
		EventID: "evt-retry",
		Type:    "payment.captured",
		Data:    EventData{GatewayOrderID: "gw_1", PaymentReference: "pay_1"},
	}))
	assert.Len(t, fix.ledger.calls, 2)
}

func TestRefundCreatedRecordsRefundWithoutOrderTransition(t *testing.T) {
	db := setupRefundTestDB(t)
	fix := newWebhookFixture(t, db)
	orderID := uuid.New()
	fix.ledger.matched = []models.Order{{ID: orderID}}

	err := fix.svc.HandleEvent(context.Background(), &Event{
		EventID: "evt-refund-1",
		Type:    "refund.created",
		Data: EventData{Refund: &RefundData{
			GatewayRefundID:  "rf_1",
			PaymentReference: "pay_1",
			AmountCents:      1500,
		}},
	})
	require.NoError(t, err)

	stored, err := NewRefundRepository(db).FindByGatewayRefundID(context.Background(), "rf_1")
	require.NoError(t, err)
	assert.Equal(t, orderID, stored.OrderID)
	assert.Equal(t, enums.RefundStatusProcessing, stored.Status)
	assert.Equal(t, 1500, stored.AmountCents)

	// Creation only records the refund; the orders stay put until the
	// refund is processed.
	assert.Empty(t, fix.ledger.calls)
}

type duplicateInsertRefunds struct {
	RefundRepository
}

func (d duplicateInsertRefunds) WithTx(*gorm.DB) RefundRepository { return d }

func (d duplicateInsertRefunds) FindByGatewayRefundID(context.Context, string) (*models.Refund, error) {
	return nil, gorm.ErrRecordNotFound
}

func (d duplicateInsertRefunds) Create(context.Context, *models.Refund) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "idx_refunds_gateway_refund_id"}
}

func TestRefundCreatedDuplicateInsertAcknowledged(t *testing.T) {
	db := setupRefundTestDB(t)
	fix := newWebhookFixture(t, db)
	fix.svc.refunds = duplicateInsertRefunds{}
	fix.ledger.matched = []models.Order{{ID: uuid.New()}}

	err := fix.svc.HandleEvent(context.Background(), &Event{
		EventID: "evt-refund-race",
		Type:    "refund.created",
		Data: EventData{Refund: &RefundData{
			GatewayRefundID:  "rf_race",
			PaymentReference: "pay_race",
			AmountCents:      100,
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, fix.ledger.calls)
}

func TestRefundCreatedUnknownReferenceRejected(t *testing.T) {
	fix := newWebhookFixture(t, setupRefundTestDB(t))
	fix.ledger.matched = nil

	err := fix.svc.HandleEvent(context.Background(), &Event{
		EventID: "evt-refund-miss",
		Type:    "refund.created",
		Data:    EventData{Refund: &RefundData{GatewayRefundID: "rf_x", PaymentReference: "pay_x"}},
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestRefundProcessedCompletesAndEmits(t *testing.T) {
	db := setupRefundTestDB(t)
	fix := newWebhookFixture(t, db)
	orderID := uuid.New()

	repo := NewRefundRepository(db)
	require.NoError(t, repo.Create(context.Background(), &models.Refund{
		ID:               uuid.New(),
		OrderID:          orderID,
		GatewayRefundID:  "rf_2",
		PaymentReference: "pay_2",
		AmountCents:      900,
		Status:           enums.RefundStatusProcessing,
	}))

	err := fix.svc.HandleEvent(context.Background(), &Event{
		EventID: "evt-refund-done",
		Type:    "refund.processed",
		Data:    EventData{Refund: &RefundData{GatewayRefundID: "rf_2", PaymentReference: "pay_2"}},
	})
	require.NoError(t, err)

	stored, err := repo.FindByGatewayRefundID(context.Background(), "rf_2")
	require.NoError(t, err)
	assert.Equal(t, enums.RefundStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	require.Len(t, fix.ledger.calls, 1)
	assert.Equal(t, "MarkRefunded", fix.ledger.calls[0].method)
	assert.Equal(t, "pay_2", fix.ledger.calls[0].reference)

	require.Len(t, fix.outbox.events, 1)
	assert.Equal(t, enums.EventRefundCompleted, fix.outbox.events[0].EventType)
	assert.Equal(t, orderID, fix.outbox.events[0].AggregateID)
}

func TestRefundProcessedTwiceEmitsOnce(t *testing.T) {
	db := setupRefundTestDB(t)
	fix := newWebhookFixture(t, db)

	repo := NewRefundRepository(db)
	require.NoError(t, repo.Create(context.Background(), &models.Refund{
		ID:               uuid.New(),
		OrderID:          uuid.New(),
		GatewayRefundID:  "rf_3",
		PaymentReference: "pay_3",
		AmountCents:      400,
		Status:           enums.RefundStatusProcessing,
	}))

	for _, eventID := range []string{"evt-a", "evt-b"} {
		require.NoError(t, fix.svc.HandleEvent(context.Background(), &Event{
			EventID: eventID,
			Type:    "refund.processed",
			Data:    EventData{Refund: &RefundData{GatewayRefundID: "rf_3", PaymentReference: "pay_3"}},
		}))
	}

	assert.Len(t, fix.outbox.events, 1)
}
