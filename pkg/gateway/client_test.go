package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmfellows/bidstreet-backend/pkg/config"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.GatewayConfig{
		BaseURL:    baseURL,
		KeyID:      "key",
		KeySecret:  "secret",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	}, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCreateOrderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Error("missing idempotency key")
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "key" || pass != "secret" {
			t.Error("missing basic auth")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"gateway_order_id":"gw_123","status":"created"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		ReferenceID: "group-1",
		AmountCents: 2500,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if resp.GatewayOrderID != "gw_123" {
		t.Fatalf("unexpected gateway order id %q", resp.GatewayOrderID)
	}
}

func TestCreateOrderRetriesServerErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"gateway_order_id":"gw_retry","status":"created"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	resp, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		ReferenceID: "group-2",
		AmountCents: 100,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if resp.GatewayOrderID != "gw_retry" {
		t.Fatalf("unexpected gateway order id %q", resp.GatewayOrderID)
	}
	if atomic.LoadInt64(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestCreateOrderDoesNotRetryClientErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		ReferenceID: "group-3",
		AmountCents: 100,
		Currency:    "USD",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestCreateOrderValidatesInput(t *testing.T) {
	client := newTestClient(t, "http://localhost:1")
	if _, err := client.CreateOrder(context.Background(), CreateOrderRequest{AmountCents: 0}); err == nil {
		t.Fatal("expected validation error")
	}
}
