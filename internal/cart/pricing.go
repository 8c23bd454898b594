package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
)

// PricingConfig carries the platform money rules applied at quote time.
type PricingConfig struct {
	TaxRateBasisPoints   int
	ShippingFlatCents    int
	FreeShippingMinCents int
}

// LineInput is one priced cart line entering the quote.
type LineInput struct {
	ProductID      uuid.UUID
	Name           string
	ImageURL       *string
	Quantity       int
	UnitPriceCents int
}

// GroupInput collects one seller's lines.
type GroupInput struct {
	SellerID uuid.UUID
	Lines    []LineInput
}

// PricedGroup is one seller's order-shaped totals.
type PricedGroup struct {
	SellerID      uuid.UUID   `json:"seller_id"`
	Lines         []LineInput `json:"lines"`
	SubtotalCents int         `json:"subtotal_cents"`
	DiscountCents int         `json:"discount_cents"`
	TaxCents      int         `json:"tax_cents"`
	ShippingCents int         `json:"shipping_cents"`
	TotalCents    int         `json:"total_cents"`
}

// PricedQuote is the seller-grouped output handed to checkout.
type PricedQuote struct {
	Groups        []PricedGroup `json:"groups"`
	SubtotalCents int           `json:"subtotal_cents"`
	DiscountCents int           `json:"discount_cents"`
	TaxCents      int           `json:"tax_cents"`
	ShippingCents int           `json:"shipping_cents"`
	TotalCents    int           `json:"total_cents"`
	CouponCode    *string       `json:"coupon_code,omitempty"`
}

// ValidateCoupon checks a coupon against the pre-discount subtotal of
// the lines it can apply to. The subtotal argument must always be the
// undiscounted value; discounts never feed back into eligibility.
func ValidateCoupon(coupon *models.Coupon, eligibleSubtotalCents int, now time.Time) error {
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if !coupon.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon is no longer active").
			WithDetails(map[string]any{"reason": "coupon_inactive"})
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired").
			WithDetails(map[string]any{"reason": "coupon_expired"})
	}
	if eligibleSubtotalCents < coupon.MinOrderCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "order below coupon minimum").
			WithDetails(map[string]any{
				"reason":          "coupon_min_order_not_met",
				"min_order_cents": coupon.MinOrderCents,
			})
	}
	return nil
}

// PriceGroups computes per-seller totals: subtotal from captured unit
// prices, coupon discount, tax on the discounted value, and the flat
// shipping fee waived above the free-shipping threshold. Each group's
// total honors total = round((subtotal - discount) * (1 + taxRate)) + shipping.
func PriceGroups(groups []GroupInput, coupon *models.Coupon, cfg PricingConfig, now time.Time) (PricedQuote, error) {
	quote := PricedQuote{Groups: make([]PricedGroup, 0, len(groups))}

	subtotals := make([]int, len(groups))
	eligibleSubtotal := 0
	for i, group := range groups {
		if len(group.Lines) == 0 {
			return PricedQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "seller group has no items")
		}
		for _, line := range group.Lines {
			if line.Quantity <= 0 {
				return PricedQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
			}
			if line.UnitPriceCents < 0 {
				return PricedQuote{}, pkgerrors.New(pkgerrors.CodeValidation, "line price must be non-negative")
			}
			subtotals[i] += line.UnitPriceCents * line.Quantity
		}
		if couponApplies(coupon, group.SellerID) {
			eligibleSubtotal += subtotals[i]
		}
	}

	if coupon != nil {
		if err := ValidateCoupon(coupon, eligibleSubtotal, now); err != nil {
			return PricedQuote{}, err
		}
		code := coupon.Code
		quote.CouponCode = &code
	}

	discounts := allocateDiscount(groups, subtotals, coupon)

	taxRate := decimal.NewFromInt(int64(cfg.TaxRateBasisPoints)).Shift(-4)
	multiplier := decimal.NewFromInt(1).Add(taxRate)

	for i, group := range groups {
		shipping := cfg.ShippingFlatCents
		if subtotals[i] >= cfg.FreeShippingMinCents {
			shipping = 0
		}

		net := subtotals[i] - discounts[i]
		gross := int(decimal.NewFromInt(int64(net)).Mul(multiplier).Round(0).IntPart())
		priced := PricedGroup{
			SellerID:      group.SellerID,
			Lines:         group.Lines,
			SubtotalCents: subtotals[i],
			DiscountCents: discounts[i],
			TaxCents:      gross - net,
			ShippingCents: shipping,
			TotalCents:    gross + shipping,
		}
		quote.Groups = append(quote.Groups, priced)

		quote.SubtotalCents += priced.SubtotalCents
		quote.DiscountCents += priced.DiscountCents
		quote.TaxCents += priced.TaxCents
		quote.ShippingCents += priced.ShippingCents
		quote.TotalCents += priced.TotalCents
	}

	return quote, nil
}

func couponApplies(coupon *models.Coupon, sellerID uuid.UUID) bool {
	if coupon == nil {
		return false
	}
	return coupon.SellerID == nil || *coupon.SellerID == sellerID
}

// allocateDiscount splits the coupon value across the eligible seller
// groups. Percent coupons apply per group; fixed coupons drain in group
// order, capped at each group's subtotal so a discount never exceeds
// what the group is worth.
func allocateDiscount(groups []GroupInput, subtotals []int, coupon *models.Coupon) []int {
	discounts := make([]int, len(groups))
	if coupon == nil {
		return discounts
	}

	switch coupon.Type {
	case enums.CouponTypePercent:
		pct := decimal.NewFromInt(int64(coupon.Value)).Shift(-2)
		for i, group := range groups {
			if !couponApplies(coupon, group.SellerID) {
				continue
			}
			discounts[i] = int(decimal.NewFromInt(int64(subtotals[i])).Mul(pct).Round(0).IntPart())
			if discounts[i] > subtotals[i] {
				discounts[i] = subtotals[i]
			}
		}
	case enums.CouponTypeFixed:
		remaining := coupon.Value
		for i, group := range groups {
			if remaining <= 0 {
				break
			}
			if !couponApplies(coupon, group.SellerID) {
				continue
			}
			take := remaining
			if take > subtotals[i] {
				take = subtotals[i]
			}
			discounts[i] = take
			remaining -= take
		}
	}
	return discounts
}
