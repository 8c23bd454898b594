package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/dmfellows/bidstreet-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL  = 24 * time.Hour
	defaultExpireBatchLimit = 200
)

type pendingOrderExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// OrderExpirationJobParams configure the pending order expiration job.
type OrderExpirationJobParams struct {
	Logger     *logger.Logger
	Orders     pendingOrderExpirer
	TTL        time.Duration
	BatchLimit int
}

// NewOrderExpirationJob builds the job that cancels gateway orders the
// webhook never confirmed and returns their reservations to stock.
func NewOrderExpirationJob(params OrderExpirationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	limit := params.BatchLimit
	if limit <= 0 {
		limit = defaultExpireBatchLimit
	}
	return &orderExpirationJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		limit:  limit,
		now:    time.Now,
	}, nil
}

type orderExpirationJob struct {
	logg   *logger.Logger
	orders pendingOrderExpirer
	ttl    time.Duration
	limit  int
	now    func() time.Time
}

func (j *orderExpirationJob) Name() string { return "order-expiration" }

func (j *orderExpirationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpirePending(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": expired})
	j.logg.Info(logCtx, "pending order expiration complete")
	return nil
}
