package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/internal/address"
	"github.com/dmfellows/bidstreet-backend/internal/cart"
	"github.com/dmfellows/bidstreet-backend/internal/inventory"
	"github.com/dmfellows/bidstreet-backend/internal/orders"
	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/gateway"
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

type paymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.CreateOrderResponse, error)
}

// Assembler turns a buyer's checkout request into one order per seller
// under a shared checkout group. All inventory reservations and order
// rows commit atomically; the gateway round trip happens after commit.
type Assembler interface {
	Checkout(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error)
}

// AssemblerParams collects the assembler's dependencies.
type AssemblerParams struct {
	Orders    orders.Ledger
	OrderRepo orders.Repository
	Inventory inventory.Ledger
	Carts     cart.Repository
	Addresses address.Repository
	Gateway   paymentGateway
	Tx        txRunner
	Outbox    outboxPublisher
	Pricing   cart.PricingConfig
	Logger    *logger.Logger
}

type service struct {
	orders    orders.Ledger
	orderRepo orders.Repository
	inventory inventory.Ledger
	carts     cart.Repository
	addresses address.Repository
	gateway   paymentGateway
	tx        txRunner
	outbox    outboxPublisher
	pricing   cart.PricingConfig
	logger    *logger.Logger
}

// NewAssembler builds the checkout assembler.
func NewAssembler(params AssemblerParams) (Assembler, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if params.OrderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:    params.Orders,
		orderRepo: params.OrderRepo,
		inventory: params.Inventory,
		carts:     params.Carts,
		addresses: params.Addresses,
		gateway:   params.Gateway,
		tx:        params.Tx,
		outbox:    params.Outbox,
		pricing:   params.Pricing,
		logger:    params.Logger,
	}, nil
}

func (s *service) Checkout(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*CheckoutResult, error) {
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	groups, err := buildGroups(input.ShopOrders)
	if err != nil {
		return nil, err
	}

	shippingAddr, err := s.resolveAddress(ctx, buyerID, input.ShippingAddressID)
	if err != nil {
		return nil, err
	}

	coupon, err := s.resolveCoupon(ctx, input.CouponCode)
	if err != nil {
		return nil, err
	}

	quote, err := cart.PriceGroups(groups, coupon, s.pricing, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	activeCart, err := s.carts.FindActiveByBuyer(ctx, buyerID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active cart")
	}

	result := &CheckoutResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		group := &models.CheckoutGroup{ID: uuid.New(), BuyerID: buyerID}
		if activeCart != nil {
			cartID := activeCart.ID
			group.CartID = &cartID
		}
		if _, err := s.orderRepo.WithTx(tx).CreateCheckoutGroup(ctx, group); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout group")
		}
		result.CheckoutGroupID = group.ID

		inv := s.inventory.WithTx(tx)
		for _, priced := range quote.Groups {
			// Any single shortfall rolls back every reservation made so far.
			for _, line := range priced.Lines {
				if err := inv.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}

			order, err := s.orders.CreateFromCheckout(ctx, tx, orders.CreateFromCheckoutInput{
				BuyerID:         buyerID,
				SellerID:        priced.SellerID,
				CheckoutGroupID: group.ID,
				PaymentMethod:   method,
				Currency:        enums.CurrencyUSD,
				SubtotalCents:   priced.SubtotalCents,
				DiscountCents:   priced.DiscountCents,
				TaxCents:        priced.TaxCents,
				ShippingCents:   priced.ShippingCents,
				TotalCents:      priced.TotalCents,
				CouponCode:      quote.CouponCode,
				ShippingAddress: &shippingAddr.Address,
				Items:           toLineItems(priced.Lines),
			})
			if err != nil {
				return err
			}
			result.OrderIDs = append(result.OrderIDs, order.ID)

			// COD never sees a payment webhook, so the reservation is
			// converted to a sale in the same transaction.
			if method == enums.PaymentMethodCOD {
				for _, line := range priced.Lines {
					if err := inv.FinalizeReservation(ctx, line.ProductID, line.Quantity); err != nil {
						return err
					}
				}
			}
		}

		if activeCart != nil {
			if _, err := s.carts.WithTx(tx).MarkConverted(ctx, activeCart.ID, group.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "convert cart")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckoutGroup,
			AggregateID:   group.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID},
			Data: payloads.OrderCreatedEvent{
				CheckoutGroupID: group.ID,
				BuyerID:         buyerID,
				OrderIDs:        result.OrderIDs,
				PaymentMethod:   string(method),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if method == enums.PaymentMethodGateway {
		if err := s.openGatewayOrder(ctx, result, quote.TotalCents); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// openGatewayOrder runs after the checkout transaction commits. On
// failure the orders stay pending and the expiration sweep releases
// their reservations once the TTL lapses.
func (s *service) openGatewayOrder(ctx context.Context, result *CheckoutResult, totalCents int) error {
	resp, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		ReferenceID: result.CheckoutGroupID.String(),
		AmountCents: totalCents,
		Currency:    string(enums.CurrencyUSD),
	})
	if err != nil {
		ctx = s.logger.WithField(ctx, "checkout_group_id", result.CheckoutGroupID.String())
		s.logger.Error(ctx, "gateway order creation failed, orders left pending", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open gateway order")
	}

	if err := s.orders.StampGatewayOrder(ctx, result.CheckoutGroupID, resp.GatewayOrderID); err != nil {
		return err
	}
	result.GatewayOrderID = &resp.GatewayOrderID
	return nil
}

func (s *service) resolveAddress(ctx context.Context, buyerID, addressID uuid.UUID) (*models.Address, error) {
	addr, err := s.addresses.FindByID(ctx, addressID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping address")
	}
	if addr.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shipping address belongs to another buyer")
	}
	return addr, nil
}

func (s *service) resolveCoupon(ctx context.Context, code *string) (*models.Coupon, error) {
	if code == nil || *code == "" {
		return nil, nil
	}
	coupon, err := s.carts.FindCouponByCode(ctx, *code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

// buildGroups converts the request shape into pricing inputs, rejecting
// duplicate seller groups and duplicate products within a group.
func buildGroups(shopOrders []ShopOrderInput) ([]cart.GroupInput, error) {
	if len(shopOrders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one seller group")
	}

	seenSellers := make(map[uuid.UUID]struct{}, len(shopOrders))
	groups := make([]cart.GroupInput, 0, len(shopOrders))
	for _, so := range shopOrders {
		if _, dup := seenSellers[so.SellerID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate seller group").
				WithDetails(map[string]any{"seller_id": so.SellerID})
		}
		seenSellers[so.SellerID] = struct{}{}

		seenProducts := make(map[uuid.UUID]struct{}, len(so.Items))
		lines := make([]cart.LineInput, 0, len(so.Items))
		for _, item := range so.Items {
			if _, dup := seenProducts[item.ProductID]; dup {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in seller group").
					WithDetails(map[string]any{"product_id": item.ProductID})
			}
			seenProducts[item.ProductID] = struct{}{}
			lines = append(lines, cart.LineInput{
				ProductID:      item.ProductID,
				Name:           item.Name,
				ImageURL:       item.ImageURL,
				Quantity:       item.Quantity,
				UnitPriceCents: item.PriceCents,
			})
		}
		groups = append(groups, cart.GroupInput{SellerID: so.SellerID, Lines: lines})
	}
	return groups, nil
}

func toLineItems(lines []cart.LineInput) []orders.LineItemInput {
	items := make([]orders.LineItemInput, 0, len(lines))
	for _, line := range lines {
		items = append(items, orders.LineItemInput{
			ProductID:      line.ProductID,
			Name:           line.Name,
			ImageURL:       line.ImageURL,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Quantity,
		})
	}
	return items
}
