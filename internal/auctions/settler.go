package auctions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/internal/inventory"
	"github.com/dmfellows/bidstreet-backend/internal/orders"
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

// Outcome describes how a single auction left the live state.
type Outcome string

const (
	OutcomeSettled       Outcome = "settled"
	OutcomeNoBids        Outcome = "no_bids"
	OutcomeReserveUnmet  Outcome = "reserve_not_met"
	OutcomeAlreadyClosed Outcome = "already_closed"
)

// Settler closes one expired auction at a time. Each call runs in its
// own transaction so a bad auction never poisons the rest of a sweep.
type Settler interface {
	Settle(ctx context.Context, auctionID uuid.UUID) (Outcome, error)
	FindDue(ctx context.Context, asOf time.Time, limit int) ([]models.Auction, error)
}

type settler struct {
	repo      Repository
	tx        txRunner
	orders    orders.Ledger
	inventory inventory.Ledger
	outbox    outboxPublisher
}

// NewSettler builds an auction settler with its required dependencies.
func NewSettler(repo Repository, tx txRunner, orderLedger orders.Ledger, inv inventory.Ledger, outboxSvc outboxPublisher) (Settler, error) {
	if repo == nil {
		return nil, fmt.Errorf("auctions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if orderLedger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &settler{
		repo:      repo,
		tx:        tx,
		orders:    orderLedger,
		inventory: inv,
		outbox:    outboxSvc,
	}, nil
}

func (s *settler) FindDue(ctx context.Context, asOf time.Time, limit int) ([]models.Auction, error) {
	due, err := s.repo.FindExpiredLive(ctx, asOf, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired live auctions")
	}
	return due, nil
}

// Settle transitions one auction out of live. The status precondition
// on the update is the gate: when a concurrent sweep already claimed
// the auction the write matches zero rows and we walk away.
func (s *settler) Settle(ctx context.Context, auctionID uuid.UUID) (Outcome, error) {
	outcome := OutcomeAlreadyClosed
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		auction, err := repo.FindByID(ctx, auctionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
		}
		if auction.Status != enums.AuctionStatusLive {
			outcome = OutcomeAlreadyClosed
			return nil
		}

		highest, err := repo.HighestBid(ctx, auction.ID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load highest bid")
		}

		if highest == nil {
			return s.closeWithoutWinner(ctx, tx, repo, auction, nil, enums.EventAuctionEndedNoBids, &outcome, OutcomeNoBids)
		}
		if auction.ReservePriceCents != nil && highest.AmountCents < *auction.ReservePriceCents {
			return s.closeWithoutWinner(ctx, tx, repo, auction, &highest.AmountCents, enums.EventAuctionEndedReserveUnmet, &outcome, OutcomeReserveUnmet)
		}

		now := time.Now().UTC()
		rows, err := repo.MarkSettled(ctx, auction.ID, highest.BidderID, highest.AmountCents, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle auction")
		}
		if rows == 0 {
			outcome = OutcomeAlreadyClosed
			return nil
		}

		order, err := s.orders.CreateFromAuctionWin(ctx, tx, orders.CreateFromAuctionWinInput{
			AuctionID:     auction.ID,
			SellerID:      auction.SellerID,
			WinnerID:      highest.BidderID,
			ProductID:     auction.ProductID,
			Title:         auction.Title,
			FinalBidCents: highest.AmountCents,
			PaymentMethod: enums.PaymentMethodGateway,
			Currency:      enums.CurrencyUSD,
		})
		if err != nil {
			return err
		}

		if err := repo.CreateWin(ctx, &models.AuctionWin{
			ID:          uuid.New(),
			AuctionID:   auction.ID,
			WinnerID:    highest.BidderID,
			OrderID:     order.ID,
			AmountCents: highest.AmountCents,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction win")
		}

		if err := s.inventory.WithTx(tx).Decrement(ctx, auction.ProductID, 1); err != nil {
			// Stock moves as a side effect of the win, never as a
			// precondition. An empty or missing inventory row must not
			// hold the auction open and fail every later sweep.
			if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionSettled,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			Version:       1,
			Data: payloads.AuctionSettledEvent{
				AuctionID:     auction.ID,
				SellerID:      auction.SellerID,
				WinnerID:      highest.BidderID,
				OrderID:       order.ID,
				FinalBidCents: highest.AmountCents,
				SettledAt:     now,
			},
		}); err != nil {
			return err
		}

		outcome = OutcomeSettled
		return nil
	})
	return outcome, err
}

func (s *settler) closeWithoutWinner(ctx context.Context, tx *gorm.DB, repo Repository, auction *models.Auction, highestBid *int, eventType enums.OutboxEventType, outcome *Outcome, target Outcome) error {
	rows, err := repo.MarkEnded(ctx, auction.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "end auction")
	}
	if rows == 0 {
		*outcome = OutcomeAlreadyClosed
		return nil
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAuction,
		AggregateID:   auction.ID,
		Version:       1,
		Data: payloads.AuctionEndedEvent{
			AuctionID:    auction.ID,
			SellerID:     auction.SellerID,
			HighestBid:   highestBid,
			ReservePrice: auction.ReservePriceCents,
			EndedAt:      time.Now().UTC(),
		},
	}); err != nil {
		return err
	}

	*outcome = target
	return nil
}
