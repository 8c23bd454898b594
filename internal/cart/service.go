package cart

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
)

// Assembler resolves a buyer's mutable cart into priced, seller-grouped
// line items ready for checkout.
type Assembler interface {
	AddItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error)
	UpdateItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*models.CartRecord, error)
	Clear(ctx context.Context, buyerID uuid.UUID) error
	Quote(ctx context.Context, buyerID uuid.UUID, couponCode *string) (PricedQuote, error)
}

type service struct {
	repo    Repository
	pricing PricingConfig
}

// NewAssembler builds the cart assembler.
func NewAssembler(repo Repository, pricing PricingConfig) (Assembler, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo, pricing: pricing}, nil
}

func (s *service) AddItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.Status != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	cart, err := s.findOrCreateCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, productID)
	switch {
	case err == nil:
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
	case err == gorm.ErrRecordNotFound:
		// Price captured at add time; later listing changes do not move it.
		item := &models.CartItem{
			ID:             uuid.New(),
			CartID:         cart.ID,
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			Name:           product.Title,
			ImageURL:       product.ImageURL,
			Quantity:       quantity,
			UnitPriceCents: product.PriceCents,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	return s.reload(ctx, buyerID)
}

func (s *service) UpdateItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}

	cart, err := s.activeCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	if quantity == 0 {
		if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
	} else if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}

	return s.reload(ctx, buyerID)
}

func (s *service) RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*models.CartRecord, error) {
	return s.UpdateItem(ctx, buyerID, productID, 0)
}

func (s *service) Clear(ctx context.Context, buyerID uuid.UUID) error {
	cart, err := s.activeCart(ctx, buyerID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Quote groups the active cart by seller and prices it with the coupon
// and shipping rules applied. The output shape feeds checkout directly.
func (s *service) Quote(ctx context.Context, buyerID uuid.UUID, couponCode *string) (PricedQuote, error) {
	cart, err := s.activeCart(ctx, buyerID)
	if err != nil {
		return PricedQuote{}, err
	}
	if len(cart.Items) == 0 {
		return PricedQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	var coupon *models.Coupon
	if couponCode != nil && strings.TrimSpace(*couponCode) != "" {
		coupon, err = s.repo.FindCouponByCode(ctx, strings.TrimSpace(*couponCode))
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return PricedQuote{}, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
			}
			return PricedQuote{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}
	}

	return PriceGroups(GroupItems(cart.Items), coupon, s.pricing, time.Now().UTC())
}

// GroupItems buckets cart items by seller with a stable order.
func GroupItems(items []models.CartItem) []GroupInput {
	bySeller := make(map[uuid.UUID][]LineInput)
	for _, item := range items {
		bySeller[item.SellerID] = append(bySeller[item.SellerID], LineInput{
			ProductID:      item.ProductID,
			Name:           item.Name,
			ImageURL:       item.ImageURL,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	sellerIDs := make([]uuid.UUID, 0, len(bySeller))
	for sellerID := range bySeller {
		sellerIDs = append(sellerIDs, sellerID)
	}
	sort.Slice(sellerIDs, func(i, j int) bool {
		return sellerIDs[i].String() < sellerIDs[j].String()
	})

	groups := make([]GroupInput, 0, len(sellerIDs))
	for _, sellerID := range sellerIDs {
		groups = append(groups, GroupInput{SellerID: sellerID, Lines: bySeller[sellerID]})
	}
	return groups
}

func (s *service) findOrCreateCart(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error) {
	cart, err := s.repo.FindActiveByBuyer(ctx, buyerID)
	if err == nil {
		return cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.CartRecord{
		ID:       uuid.New(),
		BuyerID:  buyerID,
		Status:   enums.CartStatusActive,
		Currency: enums.CurrencyUSD,
	}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) activeCart(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error) {
	cart, err := s.repo.FindActiveByBuyer(ctx, buyerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) reload(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error) {
	return s.activeCart(ctx, buyerID)
}
