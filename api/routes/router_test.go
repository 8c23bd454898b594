package routes

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/internal/address"
	"github.com/dmfellows/bidstreet-backend/internal/cart"
	checkoutsvc "github.com/dmfellows/bidstreet-backend/internal/checkout"
	gatewaywebhook "github.com/dmfellows/bidstreet-backend/internal/webhooks/gateway"
	pkgauth "github.com/dmfellows/bidstreet-backend/pkg/auth"
	"github.com/dmfellows/bidstreet-backend/pkg/config"
	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	"github.com/dmfellows/bidstreet-backend/pkg/enums"
	"github.com/dmfellows/bidstreet-backend/pkg/gateway"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
	"github.com/dmfellows/bidstreet-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCartService struct{}

// AddItem implements [cart.Assembler].
func (stubCartService) AddItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error) {
	panic("unimplemented")
}

// UpdateItem implements [cart.Assembler].
func (stubCartService) UpdateItem(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.CartRecord, error) {
	panic("unimplemented")
}

// RemoveItem implements [cart.Assembler].
func (stubCartService) RemoveItem(ctx context.Context, buyerID, productID uuid.UUID) (*models.CartRecord, error) {
	panic("unimplemented")
}

// Clear implements [cart.Assembler].
func (stubCartService) Clear(ctx context.Context, buyerID uuid.UUID) error {
	panic("unimplemented")
}

// Quote implements [cart.Assembler].
func (stubCartService) Quote(ctx context.Context, buyerID uuid.UUID, couponCode *string) (cart.PricedQuote, error) {
	return cart.PricedQuote{}, nil
}

type stubCheckoutService struct{}

// Checkout implements [checkout.Assembler].
func (stubCheckoutService) Checkout(ctx context.Context, buyerID uuid.UUID, input checkoutsvc.CheckoutInput) (*checkoutsvc.CheckoutResult, error) {
	panic("unimplemented")
}

type stubAddressRepo struct{}

// FindByID implements [address.Repository].
func (stubAddressRepo) FindByID(ctx context.Context, addressID uuid.UUID) (*models.Address, error) {
	panic("unimplemented")
}

// ListByBuyer implements [address.Repository].
func (stubAddressRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Address, error) {
	return nil, nil
}

// Create implements [address.Repository].
func (stubAddressRepo) Create(ctx context.Context, addr *models.Address) error {
	panic("unimplemented")
}

// Delete implements [address.Repository].
func (stubAddressRepo) Delete(ctx context.Context, addressID, buyerID uuid.UUID) (int64, error) {
	panic("unimplemented")
}

var _ address.Repository = stubAddressRepo{}

const testSigningSecret = "whsec_test"

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	gw, err := gateway.NewClient(context.Background(), config.GatewayConfig{
		BaseURL:       "http://gateway.test",
		KeyID:         "key",
		KeySecret:     "secret",
		WebhookSecret: testSigningSecret,
	}, logg)
	if err != nil {
		t.Fatalf("gateway client: %v", err)
	}
	return NewRouter(
		cfg,
		logg,
		stubPinger{},         // db.Pinger
		(*redis.Client)(nil), // *redis.Client
		stubCartService{},
		stubCheckoutService{},
		stubAddressRepo{},
		gw,
		(*gatewaywebhook.Service)(nil),
		nil, // settlement job
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.MemberRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestPublicPingNeedsNoToken(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/public/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthLiveNeedsNoToken(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", resp.Code)
	}
}

func TestCheckoutRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	buyer := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	buyer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleBuyer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, buyer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestSettlementRunRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	seller := httptest.NewRequest(http.MethodPost, "/api/admin/v1/settlement/run", nil)
	seller.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.RoleSeller))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, seller)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller got %d", resp.Code)
	}
}

func TestGatewayWebhookRejectsMissingSignature(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewBufferString(`{"event_id":"evt_1"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature got %d", resp.Code)
	}
}

func TestGatewayWebhookRejectsBadSignature(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewBufferString(`{"event_id":"evt_1"}`))
	req.Header.Set("X-Gateway-Signature", "deadbeef")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad signature got %d", resp.Code)
	}
}
