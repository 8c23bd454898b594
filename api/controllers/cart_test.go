package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/api/middleware"
	cartsvc "github.com/dmfellows/bidstreet-backend/internal/cart"
	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
)

type stubCartAssembler struct {
	cart       *models.CartRecord
	quote      cartsvc.PricedQuote
	err        error
	gotProduct uuid.UUID
	gotQty     int
	gotCoupon  *string
}

func (s *stubCartAssembler) AddItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error) {
	s.gotProduct = productID
	s.gotQty = quantity
	return s.cart, s.err
}

func (s *stubCartAssembler) UpdateItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error) {
	s.gotProduct = productID
	s.gotQty = quantity
	return s.cart, s.err
}

func (s *stubCartAssembler) RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*models.CartRecord, error) {
	s.gotProduct = productID
	return s.cart, s.err
}

func (s *stubCartAssembler) Clear(ctx context.Context, buyerID uuid.UUID) error {
	return s.err
}

func (s *stubCartAssembler) Quote(ctx context.Context, buyerID uuid.UUID, couponCode *string) (cartsvc.PricedQuote, error) {
	s.gotCoupon = couponCode
	return s.quote, s.err
}

func testCartRecord(buyerID uuid.UUID) *models.CartRecord {
	return &models.CartRecord{
		ID:      uuid.New(),
		BuyerID: buyerID,
		Status:  enums.CartStatusActive,
		Items: []models.CartItem{
			{
				ProductID:      uuid.New(),
				SellerID:       uuid.New(),
				Name:           "Film camera",
				Quantity:       1,
				UnitPriceCents: 4500,
			},
		},
	}
}

func withBuyer(req *http.Request, buyerID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), buyerID.String()))
}

func TestCartAddItemSuccess(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	productID := uuid.New()
	svc := &stubCartAssembler{cart: testCartRecord(buyerID)}
	handler := CartAddItem(svc, nil)

	body := `{"productId":"` + productID.String() + `","quantity":3}`
	req := withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body)), buyerID)
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.gotProduct != productID || svc.gotQty != 3 {
		t.Fatalf("unexpected call args: %s qty=%d", svc.gotProduct, svc.gotQty)
	}

	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != "active" {
		t.Fatalf("expected active cart, got %q", envelope.Data.Status)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].UnitPriceCents != 4500 {
		t.Fatalf("unexpected items: %+v", envelope.Data.Items)
	}
}

func TestCartAddItemRejectsMissingQuantity(t *testing.T) {
	handler := CartAddItem(&stubCartAssembler{}, nil)

	body := `{"productId":"` + uuid.NewString() + `"}`
	req := withBuyer(httptest.NewRequest(http.MethodPost, "/api/v1/cart", strings.NewReader(body)), uuid.New())
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartRemoveItemParsesURLParam(t *testing.T) {
	buyerID := uuid.New()
	productID := uuid.New()
	svc := &stubCartAssembler{cart: testCartRecord(buyerID)}

	router := chi.NewRouter()
	router.Delete("/api/v1/cart/items/{productId}", CartRemoveItem(svc, nil))

	req := withBuyer(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+productID.String(), nil), buyerID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotProduct != productID {
		t.Fatalf("expected product %s got %s", productID, svc.gotProduct)
	}
}

func TestCartRemoveItemRejectsBadProductID(t *testing.T) {
	router := chi.NewRouter()
	router.Delete("/api/v1/cart/items/{productId}", CartRemoveItem(&stubCartAssembler{}, nil))

	req := withBuyer(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/not-a-uuid", nil), uuid.New())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartQuotePassesCoupon(t *testing.T) {
	svc := &stubCartAssembler{quote: cartsvc.PricedQuote{SubtotalCents: 2000, TotalCents: 2759}}
	handler := CartQuote(svc, nil)

	req := withBuyer(httptest.NewRequest(http.MethodGet, "/api/v1/cart?coupon=SAVE10", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotCoupon == nil || *svc.gotCoupon != "SAVE10" {
		t.Fatalf("expected coupon SAVE10, got %v", svc.gotCoupon)
	}
}

func TestCartQuoteNotFoundWhenEmpty(t *testing.T) {
	handler := CartQuote(&stubCartAssembler{
		err: pkgerrors.New(pkgerrors.CodeNotFound, "no active cart"),
	}, nil)

	req := withBuyer(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
