package cron

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dmfellows/bidstreet-backend/internal/auctions"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
)

const (
	defaultSweepBatchSize   = 50
	defaultSweepParallelism = 8
	defaultSlowSweepWarn    = 30 * time.Second
)

// SweepResult summarizes one settlement pass.
type SweepResult struct {
	Processed  int           `json:"processed"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"-"`
}

// AuctionSettlementJobParams configure the settlement sweep.
type AuctionSettlementJobParams struct {
	Logger        *logger.Logger
	Settler       auctions.Settler
	BatchSize     int
	Parallelism   int
	SlowThreshold time.Duration
}

// AuctionSettlementJob closes expired live auctions in bounded batches.
type AuctionSettlementJob struct {
	logg          *logger.Logger
	settler       auctions.Settler
	batchSize     int
	parallelism   int
	slowThreshold time.Duration
	now           func() time.Time
}

// NewAuctionSettlementJob builds the settlement sweep job.
func NewAuctionSettlementJob(params AuctionSettlementJobParams) (*AuctionSettlementJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("auction settler required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 || batchSize > defaultSweepBatchSize {
		batchSize = defaultSweepBatchSize
	}
	parallelism := params.Parallelism
	if parallelism <= 0 {
		parallelism = defaultSweepParallelism
	}
	slowThreshold := params.SlowThreshold
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowSweepWarn
	}
	return &AuctionSettlementJob{
		logg:          params.Logger,
		settler:       params.Settler,
		batchSize:     batchSize,
		parallelism:   parallelism,
		slowThreshold: slowThreshold,
		now:           time.Now,
	}, nil
}

func (j *AuctionSettlementJob) Name() string { return "auction-settlement" }

func (j *AuctionSettlementJob) Run(ctx context.Context) error {
	_, err := j.RunSweep(ctx)
	return err
}

// RunSweep settles one batch of expired auctions. Each auction runs in
// its own transaction; one failure never blocks the others. The batch
// error is the combination of every per-auction failure.
func (j *AuctionSettlementJob) RunSweep(ctx context.Context) (SweepResult, error) {
	start := j.now()

	due, err := j.settler.FindDue(ctx, start.UTC(), j.batchSize)
	if err != nil {
		return SweepResult{}, err
	}
	if len(due) == 0 {
		j.logg.Info(ctx, "no auctions due for settlement")
		return SweepResult{}, nil
	}

	var successful, failed int64
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.parallelism)
	for _, auction := range due {
		auction := auction
		g.Go(func() error {
			outcome, settleErr := j.settler.Settle(gctx, auction.ID)
			if settleErr != nil {
				atomic.AddInt64(&failed, 1)
				mu.Lock()
				errs = append(errs, fmt.Errorf("settle auction %s: %w", auction.ID, settleErr))
				mu.Unlock()

				errCtx := j.logg.WithAuctionID(gctx, auction.ID.String())
				j.logg.Error(errCtx, "auction settlement failed", settleErr)
				return nil
			}
			atomic.AddInt64(&successful, 1)

			okCtx := j.logg.WithAuctionID(gctx, auction.ID.String())
			okCtx = j.logg.WithField(okCtx, "outcome", string(outcome))
			j.logg.Info(okCtx, "auction closed")
			return nil
		})
	}
	// Workers never return errors directly; failures are collected above.
	_ = g.Wait()

	duration := j.now().Sub(start)
	result := SweepResult{
		Processed:  len(due),
		Successful: int(successful),
		Failed:     int(failed),
		Duration:   duration,
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed":   result.Processed,
		"successful":  result.Successful,
		"failed":      result.Failed,
		"duration_ms": duration.Milliseconds(),
	})
	if duration > j.slowThreshold {
		j.logg.Warn(logCtx, "settlement sweep ran slow")
	} else {
		j.logg.Info(logCtx, "settlement sweep complete")
	}

	return result, multierr.Combine(errs...)
}
