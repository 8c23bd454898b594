package cart

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
)

var testPricing = PricingConfig{
	TaxRateBasisPoints:   800,
	ShippingFlatCents:    599,
	FreeShippingMinCents: 7500,
}

func oneGroup(sellerID uuid.UUID, unitPrice, qty int) []GroupInput {
	return []GroupInput{{
		SellerID: sellerID,
		Lines: []LineInput{{
			ProductID:      uuid.New(),
			Name:           "widget",
			Quantity:       qty,
			UnitPriceCents: unitPrice,
		}},
	}}
}

func TestPriceGroupsMonetaryRoundTrip(t *testing.T) {
	// subtotal 2000, discount 200, tax 8%:
	// total = round(1800 * 1.08) + 599 = 1944 + 599
	sellerID := uuid.New()
	coupon := &models.Coupon{
		Code:   "SAVE200",
		Type:   enums.CouponTypeFixed,
		Value:  200,
		Active: true,
	}

	quote, err := PriceGroups(oneGroup(sellerID, 1000, 2), coupon, testPricing, time.Now())
	require.NoError(t, err)
	require.Len(t, quote.Groups, 1)

	group := quote.Groups[0]
	assert.Equal(t, 2000, group.SubtotalCents)
	assert.Equal(t, 200, group.DiscountCents)
	assert.Equal(t, 144, group.TaxCents)
	assert.Equal(t, 599, group.ShippingCents)
	assert.Equal(t, 2543, group.TotalCents)
	assert.Equal(t,
		group.SubtotalCents-group.DiscountCents+group.TaxCents+group.ShippingCents,
		group.TotalCents)
}

func TestPriceGroupsFreeShippingThreshold(t *testing.T) {
	quote, err := PriceGroups(oneGroup(uuid.New(), 7500, 1), nil, testPricing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, quote.Groups[0].ShippingCents)

	quote, err = PriceGroups(oneGroup(uuid.New(), 7499, 1), nil, testPricing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 599, quote.Groups[0].ShippingCents)
}

func TestPriceGroupsPercentCouponPerSeller(t *testing.T) {
	groups := []GroupInput{
		{SellerID: uuid.New(), Lines: []LineInput{{ProductID: uuid.New(), Name: "a", Quantity: 1, UnitPriceCents: 1000}}},
		{SellerID: uuid.New(), Lines: []LineInput{{ProductID: uuid.New(), Name: "b", Quantity: 1, UnitPriceCents: 3000}}},
	}
	coupon := &models.Coupon{Code: "TEN", Type: enums.CouponTypePercent, Value: 10, Active: true}

	quote, err := PriceGroups(groups, coupon, testPricing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100, quote.Groups[0].DiscountCents)
	assert.Equal(t, 300, quote.Groups[1].DiscountCents)
	assert.Equal(t, 400, quote.DiscountCents)
}

func TestPriceGroupsFixedCouponDrainsAcrossGroups(t *testing.T) {
	groups := []GroupInput{
		{SellerID: uuid.New(), Lines: []LineInput{{ProductID: uuid.New(), Name: "a", Quantity: 1, UnitPriceCents: 500}}},
		{SellerID: uuid.New(), Lines: []LineInput{{ProductID: uuid.New(), Name: "b", Quantity: 1, UnitPriceCents: 2000}}},
	}
	coupon := &models.Coupon{Code: "BIG", Type: enums.CouponTypeFixed, Value: 1200, Active: true}

	quote, err := PriceGroups(groups, coupon, testPricing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 500, quote.Groups[0].DiscountCents)
	assert.Equal(t, 700, quote.Groups[1].DiscountCents)
}

func TestPriceGroupsSellerScopedCoupon(t *testing.T) {
	scoped := uuid.New()
	other := uuid.New()
	groups := []GroupInput{
		{SellerID: scoped, Lines: []LineInput{{ProductID: uuid.New(), Name: "a", Quantity: 1, UnitPriceCents: 1000}}},
		{SellerID: other, Lines: []LineInput{{ProductID: uuid.New(), Name: "b", Quantity: 1, UnitPriceCents: 1000}}},
	}
	coupon := &models.Coupon{Code: "SHOP", Type: enums.CouponTypePercent, Value: 50, Active: true, SellerID: &scoped}

	quote, err := PriceGroups(groups, coupon, testPricing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 500, quote.Groups[0].DiscountCents)
	assert.Equal(t, 0, quote.Groups[1].DiscountCents)
}

func TestValidateCouponMinOrderAgainstPreDiscountSubtotal(t *testing.T) {
	coupon := &models.Coupon{
		Code:          "MIN",
		Type:          enums.CouponTypeFixed,
		Value:         500,
		MinOrderCents: 2500,
		Active:        true,
	}

	_, err := PriceGroups(oneGroup(uuid.New(), 1000, 2), coupon, testPricing, time.Now())
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	quote, err := PriceGroups(oneGroup(uuid.New(), 1000, 3), coupon, testPricing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 500, quote.DiscountCents)
}

func TestValidateCouponExpiry(t *testing.T) {
	expired := time.Now().Add(-time.Hour)
	coupon := &models.Coupon{
		Code:      "OLD",
		Type:      enums.CouponTypeFixed,
		Value:     100,
		Active:    true,
		ExpiresAt: &expired,
	}

	_, err := PriceGroups(oneGroup(uuid.New(), 1000, 1), coupon, testPricing, time.Now())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestValidateCouponInactive(t *testing.T) {
	coupon := &models.Coupon{Code: "OFF", Type: enums.CouponTypeFixed, Value: 100, Active: false}

	_, err := PriceGroups(oneGroup(uuid.New(), 1000, 1), coupon, testPricing, time.Now())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestPriceGroupsRejectsEmptyGroup(t *testing.T) {
	_, err := PriceGroups([]GroupInput{{SellerID: uuid.New()}}, nil, testPricing, time.Now())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGroupItemsStableBySeller(t *testing.T) {
	sellerA := uuid.New()
	sellerB := uuid.New()
	items := []models.CartItem{
		{ProductID: uuid.New(), SellerID: sellerA, Name: "a1", Quantity: 1, UnitPriceCents: 100},
		{ProductID: uuid.New(), SellerID: sellerB, Name: "b1", Quantity: 2, UnitPriceCents: 200},
		{ProductID: uuid.New(), SellerID: sellerA, Name: "a2", Quantity: 3, UnitPriceCents: 300},
	}

	groups := GroupItems(items)
	require.Len(t, groups, 2)
	total := 0
	for _, g := range groups {
		total += len(g.Lines)
	}
	assert.Equal(t, 3, total)
}
