package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gatewaywebhook "github.com/dmfellows/bidstreet-backend/internal/webhooks/gateway"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
)

type stubWebhookService struct {
	err      error
	received *gatewaywebhook.Event
}

func (s *stubWebhookService) HandleEvent(ctx context.Context, event *gatewaywebhook.Event) error {
	s.received = event
	return s.err
}

type staticSecret string

func (s staticSecret) SigningSecret() string {
	return string(s)
}

const webhookSecret = "whsec_test"

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(body))
	req.Header.Set(signatureHeader, gatewaywebhook.Sign(webhookSecret, []byte(body)))
	return req
}

func TestGatewayWebhookAcceptsSignedEvent(t *testing.T) {
	t.Parallel()

	svc := &stubWebhookService{}
	handler := GatewayWebhook(svc, staticSecret(webhookSecret), nil)

	body := `{"event_id":"evt_1","type":"payment.captured","data":{"gateway_order_id":"gw_1"}}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedRequest(t, body))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.received == nil || svc.received.EventID != "evt_1" {
		t.Fatalf("event not delivered: %+v", svc.received)
	}
	if svc.received.Type != "payment.captured" {
		t.Fatalf("unexpected event type %q", svc.received.Type)
	}
}

func TestGatewayWebhookRejectsMissingSignature(t *testing.T) {
	handler := GatewayWebhook(&stubWebhookService{}, staticSecret(webhookSecret), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(`{"event_id":"evt_1"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGatewayWebhookRejectsTamperedBody(t *testing.T) {
	handler := GatewayWebhook(&stubWebhookService{}, staticSecret(webhookSecret), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", strings.NewReader(`{"event_id":"evt_2"}`))
	req.Header.Set(signatureHeader, gatewaywebhook.Sign(webhookSecret, []byte(`{"event_id":"evt_1"}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestGatewayWebhookRejectsMalformedJSON(t *testing.T) {
	handler := GatewayWebhook(&stubWebhookService{}, staticSecret(webhookSecret), nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedRequest(t, `{not json`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGatewayWebhookPropagatesServiceError(t *testing.T) {
	handler := GatewayWebhook(&stubWebhookService{
		err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable"),
	}, staticSecret(webhookSecret), nil)

	body := `{"event_id":"evt_3","type":"payment.failed"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedRequest(t, body))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
