package orders

import (
	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	"github.com/dmfellows/bidstreet-backend/pkg/types"
)

// LineItemInput is the snapshot captured onto an order line item.
type LineItemInput struct {
	ProductID      uuid.UUID
	Name           string
	ImageURL       *string
	UnitPriceCents int
	Qty            int
}

// CreateFromCheckoutInput carries everything needed to create one
// seller's order inside a checkout transaction.
type CreateFromCheckoutInput struct {
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	CheckoutGroupID uuid.UUID
	PaymentMethod   enums.PaymentMethod
	Currency        enums.Currency
	SubtotalCents   int
	DiscountCents   int
	TaxCents        int
	ShippingCents   int
	TotalCents      int
	CouponCode      *string
	ShippingAddress *types.Address
	Items           []LineItemInput
}

// CreateFromAuctionWinInput carries the winning outcome that becomes
// an order during settlement.
type CreateFromAuctionWinInput struct {
	AuctionID     uuid.UUID
	SellerID      uuid.UUID
	WinnerID      uuid.UUID
	ProductID     uuid.UUID
	Title         string
	FinalBidCents int
	PaymentMethod enums.PaymentMethod
	Currency      enums.Currency
}
